package agents

import (
	"context"
	"fmt"
	"log/slog"

	"kgbot/app/client/llm"
	"kgbot/app/config"
	"kgbot/app/service/artifact"
	"kgbot/app/service/checkpoint"
	"kgbot/app/service/interpret"
	"kgbot/app/service/resolver"
	"kgbot/app/service/schema"
	"kgbot/app/service/sparqlgen"
	"kgbot/app/service/workspace"
	"kgbot/app/util/mylog"

	"github.com/samber/do"
)

type Service struct {
	cfg          *config.Config
	graph        *Graph
	checkpoints  checkpoint.Store
	workspaceSvc *workspace.Service
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	schemaSvc := do.MustInvoke[*schema.Service](di)
	resolverSvc := do.MustInvoke[*resolver.Service](di)
	checkpoints := do.MustInvoke[checkpoint.Store](di)
	artifacts := do.MustInvoke[artifact.Store](di)

	validatorAgent, err := NewValidatorAgent(
		llm.NewClient(cfg.LLM.Validator),
		schemaSvc.Get,
		cfg.Resolvers.PlantListPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build validator: %w", err)
	}

	graph := NewGraph(
		[]Agent{
			NewEntryAgent(llm.NewClient(cfg.LLM.Entry)),
			validatorAgent,
			NewSupervisorAgent(llm.NewClient(cfg.LLM.Supervisor)),
			NewResolverAgent(llm.NewClient(cfg.LLM.Resolver), resolverSvc.Tools(), artifacts),
			NewRunnerAgent(do.MustInvoke[*sparqlgen.Service](di)),
			NewInterpreterAgent(do.MustInvoke[*interpret.Service](di), artifacts),
		},
		checkpoints,
		artifacts,
		cfg.HTTP.MaxSupervisorDecisions,
	)

	return &Service{
		cfg:          cfg,
		graph:        graph,
		checkpoints:  checkpoints,
		workspaceSvc: do.MustInvoke[*workspace.Service](di),
	}, nil
}

// Ask processes one user question on a thread, resuming from the checkpoint
// when the thread has history. Events stream through emit as agents act.
func (s *Service) Ask(ctx context.Context, sessionID, threadID, question string, emit EmitFunc) (ConversationState, error) {
	if threadID == "" {
		threadID = sessionID + "-main"
	}

	state, err := s.loadState(ctx, threadID)
	if err != nil {
		return ConversationState{}, err
	}

	logger, closeLog := s.sessionLogger(sessionID)
	defer closeLog()

	turn := &Turn{
		SessionID: sessionID,
		ThreadID:  threadID,
		State:     state.Append(AuthorUser, question, KindText),
		Logger:    logger,
	}

	logger.Info("Processing question", "thread_id", threadID, "question", question)

	return s.graph.Run(ctx, turn, emit)
}

func (s *Service) loadState(ctx context.Context, threadID string) (ConversationState, error) {
	data, err := s.checkpoints.Load(ctx, threadID)
	if err != nil {
		return ConversationState{}, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	// Unknown thread: start fresh.
	if data == nil {
		return ConversationState{Next: Terminal}, nil
	}

	state, err := UnmarshalState(data)
	if err != nil {
		return ConversationState{}, err
	}

	return state, nil
}

func (s *Service) sessionLogger(sessionID string) (*slog.Logger, func()) {
	file, err := s.workspaceSvc.LogFile(sessionID)
	if err != nil {
		slog.Warn("Failed to open session log, falling back to default", "error", err)
		return slog.Default().With("session_id", sessionID), func() {}
	}

	return mylog.SessionLogger(file, sessionID), func() { _ = file.Close() }
}
