package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"kgbot/app/api"
	"kgbot/app/client/llm"
	"kgbot/app/client/sparqlhttp"
	"kgbot/app/config"
	"kgbot/app/service/agents"
	"kgbot/app/service/artifact"
	"kgbot/app/service/checkpoint"
	"kgbot/app/service/index"
	"kgbot/app/service/interpret"
	"kgbot/app/service/resolver"
	"kgbot/app/service/schema"
	"kgbot/app/service/sparqlgen"
	"kgbot/app/service/storedb"
	"kgbot/app/service/workspace"
	"kgbot/app/util/mylog"
	"log/slog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/samber/do"
)

func main() {
	questionIndex := flag.Int("question", -1, "index into the standard question list")
	customQuestion := flag.String("custom", "", "free-form question text")
	questionsPath := flag.String("questions", "data/standard_questions.txt", "path to the standard question list")
	apiKey := flag.String("api-key", "", "override the LLM API token for all models")
	endpoint := flag.String("endpoint", "", "override the SPARQL endpoint")
	flag.Parse()

	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if *endpoint != "" {
		cfg.Graph.Endpoint = *endpoint
	}
	if *apiKey != "" {
		cfg.LLM.SetToken(*apiKey)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, newGraphClient)
	do.Provide(di, newEmbedder)
	do.Provide(di, storedb.Open)
	do.Provide(di, artifact.New)
	do.Provide(di, checkpoint.New)
	do.Provide(di, workspace.New)
	do.Provide(di, schema.New)
	do.Provide(di, index.New)
	do.Provide(di, resolver.New)
	do.Provide(di, sparqlgen.New)
	do.Provide(di, interpret.New)
	do.Provide(di, agents.New)
	do.Provide(di, api.New)

	slog.Info("Introspecting knowledge graph schema...")

	if err = do.MustInvoke[*schema.Service](di).Build(appCtx); err != nil {
		log.Fatalf("schema introspection failed: %v", err)
	}

	slog.Info("Building retrieval indexes...")

	if err = do.MustInvoke[*index.Service](di).Build(appCtx); err != nil {
		log.Fatalf("index build failed: %v", err)
	}

	go checkpoint.RunSweeper(appCtx, do.MustInvoke[checkpoint.Store](di),
		time.Duration(cfg.Store.TTLHours)*time.Hour)
	go do.MustInvoke[*workspace.Service](di).RunSweeper(appCtx)

	if *questionIndex >= 0 || *customQuestion != "" {
		code := runOnce(appCtx, di, *questionIndex, *customQuestion, *questionsPath)

		// os.Exit skips the deferred teardown.
		cancel()
		_ = di.Shutdown()

		os.Exit(code)
	}

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	srv := do.MustInvoke[*api.Server](di)

	go func() {
		<-appCtx.Done()
		_ = srv.Shutdown()
	}()

	if err = srv.Run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func newGraphClient(di *do.Injector) (*sparqlhttp.Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	opts := []sparqlhttp.Option{
		sparqlhttp.WithTimeout(time.Duration(cfg.Graph.TimeoutSeconds) * time.Second),
	}
	if cfg.Graph.User != "" {
		opts = append(opts, sparqlhttp.WithBasicAuth(cfg.Graph.User, cfg.Graph.Pass))
	}

	return sparqlhttp.New(cfg.Graph.Endpoint, opts...), nil
}

func newEmbedder(di *do.Injector) (llm.Embedder, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return llm.NewEmbeddingClient(cfg.LLM.Embeddings), nil
}

func runOnce(ctx context.Context, di *do.Injector, questionIndex int, custom, questionsPath string) int {
	question := custom

	if question == "" {
		loaded, err := loadQuestion(questionsPath, questionIndex)
		if err != nil {
			slog.Error("Failed to load question", "index", questionIndex, "error", err)

			return 1
		}

		question = loaded
	}

	sessionID := uuid.NewString()

	emit := func(ev agents.Event) {
		if ev.Content == "" {
			return
		}

		fmt.Printf("[%s] %s\n", ev.Agent, ev.Content)
	}

	state, err := do.MustInvoke[*agents.Service](di).Ask(ctx, sessionID, "", question, emit)
	if err != nil {
		slog.Error("Question failed", "error", err)

		return 1
	}

	if last := state.LastMessage(); last.Text != "" {
		fmt.Println(last.Text)
	}

	return 0
}

func loadQuestion(path string, index int) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open question list: %w", err)
	}
	defer file.Close()

	var questions []string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		questions = append(questions, line)
	}

	if err = scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read question list: %w", err)
	}

	if index < 0 || index >= len(questions) {
		return "", fmt.Errorf("question index %d out of range (have %d)", index, len(questions))
	}

	return questions[index], nil
}
