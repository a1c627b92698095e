// Package server exposes the analysis agent over HTTP: upload a workbook,
// inspect its sheets, ask questions.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"

	"sheetagent/internal/agent"
	"sheetagent/internal/errinfo"
	"sheetagent/internal/llm"
	"sheetagent/internal/normalize"
	"sheetagent/internal/settings"
	"sheetagent/internal/workbook"
	"sheetagent/internal/xlsxio"
)

// maxSessions caps live sessions; the oldest is evicted when full.
const maxSessions = 32

// Config wires the handler's collaborators.
type Config struct {
	Client   agent.LLMClient
	APIKey   string
	Settings *settings.Settings
	Logger   *slog.Logger
}

type sessionEntry struct {
	session *agent.Session
	// Serializes Ask calls; the agent session is not concurrency-safe.
	mu sync.Mutex
}

// Handler holds the session registry and serves the API routes.
type Handler struct {
	client     agent.LLMClient
	apiKey     string
	cfg        *settings.Settings
	logger     *slog.Logger
	normalizer *normalize.Normalizer

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	order    []string
}

func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := cfg.Settings
	if s == nil {
		s = settings.Default()
	}
	normalizer := normalize.NewNormalizer()
	if s.SynonymThreshold > 0 {
		normalizer.Threshold = s.SynonymThreshold
	}
	return &Handler{
		client:     cfg.Client,
		apiKey:     cfg.APIKey,
		cfg:        s,
		logger:     logger,
		normalizer: normalizer,
		sessions:   make(map[string]*sessionEntry),
	}
}

// ValidateProvider checks the configured LLM credentials so a bad or
// missing key surfaces at startup instead of on the first ask.
func (h *Handler) ValidateProvider(ctx context.Context) *errinfo.ErrorInfo {
	if h.client == nil || strings.TrimSpace(h.apiKey) == "" {
		return errinfo.ProviderNotConfigured(errinfo.PhaseChat)
	}
	if err := h.client.ValidateKey(ctx, h.apiKey); err != nil {
		if errors.Is(err, llm.ErrUnauthorized) {
			return errinfo.ProviderAuthFailed(errinfo.PhaseChat)
		}
		return errinfo.ProviderUnavailable(errinfo.PhaseChat, err.Error())
	}
	return nil
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.POST("/upload", h.Upload)
	api.GET("/sessions/:id/sheets", h.ListSheets)
	api.GET("/sessions/:id/schema", h.GetSchema)
	api.POST("/sessions/:id/ask", h.Ask)
}

// Upload receives an xlsx file, builds a session, and returns its ID with
// a preview of every sheet.
func (h *Handler) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, errinfo.ValidationFailed(errinfo.PhaseLoad, "multipart field 'file' is required"))
	}
	src, err := fileHeader.Open()
	if err != nil {
		return errorJSON(c, errinfo.LoadFailed(err.Error()))
	}
	defer src.Close()

	sheets, err := xlsxio.Read(src, h.logger)
	if err != nil {
		h.logger.Warn("server.upload_failed", "filename", fileHeader.Filename, "error", err.Error())
		return errorJSON(c, errinfo.LoadFailed(err.Error()))
	}
	wb := workbook.Load(sheets, h.normalizer, h.logger)
	session := agent.NewSession(wb, agent.Config{
		Client:           h.client,
		APIKey:           h.apiKey,
		Model:            h.cfg.ModelID,
		MaxTurns:         h.cfg.MaxAgentTurns,
		ResolveThreshold: h.cfg.ResolveThreshold,
		PreviewRows:      h.cfg.PreviewRows,
		Logger:           h.logger,
	})
	h.register(session)
	h.logger.Info("server.session_created", "session_id", session.ID,
		"filename", fileHeader.Filename, "sheets", len(sheets))

	return c.JSON(http.StatusCreated, map[string]any{
		"session_id": session.ID,
		"sheets":     wb.ListSheets(),
		"preview":    wb.PreviewMarkdown(h.previewRows()),
	})
}

func (h *Handler) ListSheets(c echo.Context) error {
	entry, ok := h.lookup(c.Param("id"))
	if !ok {
		return h.sessionNotFound(c)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"sheets": entry.session.Workbook().ListSheets(),
	})
}

func (h *Handler) GetSchema(c echo.Context) error {
	entry, ok := h.lookup(c.Param("id"))
	if !ok {
		return h.sessionNotFound(c)
	}
	sheet := c.QueryParam("sheet")
	if sheet == "" {
		return errorJSON(c, errinfo.ValidationFailed(errinfo.PhaseQuery, "query parameter 'sheet' is required"))
	}
	schema, err := entry.session.Workbook().Schema(sheet)
	if err != nil {
		return errorJSON(c, errinfo.NotFound(errinfo.PhaseQuery, sheet, ""))
	}
	return c.JSON(http.StatusOK, schema)
}

func (h *Handler) Ask(c echo.Context) error {
	entry, ok := h.lookup(c.Param("id"))
	if !ok {
		return h.sessionNotFound(c)
	}
	var body struct {
		Question string `json:"question"`
	}
	if err := c.Bind(&body); err != nil {
		return errorJSON(c, errinfo.ValidationFailed(errinfo.PhaseChat, "invalid request body"))
	}

	entry.mu.Lock()
	answer, errInfo := entry.session.Ask(c.Request().Context(), body.Question)
	entry.mu.Unlock()
	if errInfo != nil {
		return errorJSON(c, errInfo)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session_id": entry.session.ID,
		"answer":     answer,
	})
}

func (h *Handler) register(session *agent.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for len(h.order) >= maxSessions {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.sessions, oldest)
		h.logger.Info("server.session_evicted", "session_id", oldest)
	}
	h.sessions[session.ID] = &sessionEntry{session: session}
	h.order = append(h.order, session.ID)
}

func (h *Handler) lookup(id string) (*sessionEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.sessions[id]
	return entry, ok
}

func (h *Handler) sessionNotFound(c echo.Context) error {
	info := &errinfo.ErrorInfo{
		ErrorCode: errinfo.CodeNotFound,
		Phase:     errinfo.PhaseQuery,
		Detail:    "unknown session",
	}
	return errorJSON(c, info)
}

func (h *Handler) previewRows() int {
	if h.cfg.PreviewRows > 0 {
		return h.cfg.PreviewRows
	}
	return 5
}

// errorJSON writes the structured error payload with the HTTP status its
// code implies.
func errorJSON(c echo.Context, info *errinfo.ErrorInfo) error {
	return c.JSON(httpStatus(info), map[string]any{"error": info})
}

func httpStatus(info *errinfo.ErrorInfo) int {
	switch info.ErrorCode {
	case errinfo.CodeNotFound:
		return http.StatusNotFound
	case errinfo.CodeValidationFailed:
		return http.StatusBadRequest
	case errinfo.CodeLoadFailed:
		return http.StatusUnprocessableEntity
	case errinfo.CodeProviderAuthFailed:
		return http.StatusBadGateway
	case errinfo.CodeProviderNotConfigured, errinfo.CodeProviderUnavailable:
		return http.StatusServiceUnavailable
	case errinfo.CodeUserCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
