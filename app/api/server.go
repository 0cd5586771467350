package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"kgbot/app/config"
	"kgbot/app/service/agents"
	"kgbot/app/service/workspace"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/valyala/fasthttp"
)

type Server struct {
	appCtx       context.Context
	cfg          *config.Config
	app          *fiber.App
	agentsSvc    *agents.Service
	workspaceSvc *workspace.Service
}

func New(di *do.Injector) (*Server, error) {
	srv := &Server{
		appCtx:       do.MustInvoke[context.Context](di),
		cfg:          do.MustInvoke[*config.Config](di),
		agentsSvc:    do.MustInvoke[*agents.Service](di),
		workspaceSvc: do.MustInvoke[*workspace.Service](di),
	}

	srv.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             64 * 1024 * 1024,
	})

	srv.app.Post("/api/workflow", srv.handleWorkflow)
	srv.app.Post("/api/upload", srv.handleUpload)
	srv.app.Get("/api/download", srv.handleDownload)
	srv.app.Get("/api/health", srv.handleHealth)

	return srv, nil
}

func (s *Server) Run() error {
	slog.Info("HTTP server listening", "addr", s.cfg.HTTP.Addr)

	return s.app.Listen(s.cfg.HTTP.Addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

type workflowRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
	ThreadID  string `json:"thread_id"`
}

func (s *Server) handleWorkflow(c *fiber.Ctx) error {
	var req workflowRequest

	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Prompt == "" {
		return fiber.NewError(fiber.StatusBadRequest, "prompt is required")
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	sessionID := req.SessionID
	threadID := req.ThreadID
	prompt := req.Prompt
	ctx := s.appCtx

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		emit := func(ev agents.Event) {
			writeSSE(w, ev)
		}

		_, err := s.agentsSvc.Ask(ctx, sessionID, threadID, prompt, emit)
		if err != nil {
			slog.Error("Workflow failed", "session_id", sessionID, "error", err)
			writeSSE(w, agents.Event{
				Type:    "error",
				Content: err.Error(),
			})
		}

		writeSSE(w, agents.Event{Type: "done"})
	}))

	return nil
}

func writeSSE(w *bufio.Writer, ev agents.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	_ = w.Flush()
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	sessionID := c.FormValue("session_id")
	if sessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to open uploaded file")
	}
	defer file.Close()

	path, err := s.workspaceSvc.SaveUpload(sessionID, fileHeader.Filename, file)
	if err != nil {
		slog.Error("Upload failed", "session_id", sessionID, "error", err)

		return fiber.NewError(fiber.StatusInternalServerError, "failed to save file")
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"path":       path,
	})
}

func (s *Server) handleDownload(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}

	c.Set("Content-Type", "application/zip")
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, sessionID))

	if err := s.workspaceSvc.Zip(sessionID, c.Response().BodyWriter()); err != nil {
		slog.Error("Download failed", "session_id", sessionID, "error", err)

		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}

	return nil
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
