// Package agent runs the tool-calling analysis loop: one session per
// uploaded workbook, one conversation per session.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"sheetagent/internal/errinfo"
	"sheetagent/internal/llm"
	"sheetagent/internal/workbook"
)

const (
	maxAgentTurns       = 12
	maxToolCallsPerTurn = 8
)

// LLMClient is the provider surface the agent needs. *openai.Client
// satisfies it; tests substitute a scripted fake.
type LLMClient interface {
	ValidateKey(ctx context.Context, apiKey string) error
	ChatWithTools(ctx context.Context, apiKey, model string, messages []llm.ChatMessage, tools []llm.Tool) (llm.ChatResponse, error)
}

// Config carries everything a session needs beyond the workbook itself.
type Config struct {
	Client           LLMClient
	APIKey           string
	Model            string
	MaxTurns         int
	ResolveThreshold int
	PreviewRows      int
	Logger           *slog.Logger
}

// Session is one conversation over one workbook. Not safe for concurrent
// Ask calls; the server serializes per session.
type Session struct {
	ID        string
	CreatedAt time.Time

	wb       *workbook.Workbook
	client   LLMClient
	apiKey   string
	model    string
	maxTurns int
	handler  *ToolHandler
	logger   *slog.Logger
	messages []llm.ChatMessage
}

// NewSession starts a conversation grounded on a preview of every sheet.
func NewSession(wb *workbook.Workbook, cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = maxAgentTurns
	}
	previewRows := cfg.PreviewRows
	if previewRows <= 0 {
		previewRows = 5
	}
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		wb:        wb,
		client:    cfg.Client,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTurns:  maxTurns,
		handler:   NewToolHandler(wb, cfg.ResolveThreshold, previewRows),
		logger:    logger,
	}
	s.messages = []llm.ChatMessage{{
		Role:    "system",
		Content: systemPrompt(wb, previewRows),
	}}
	return s
}

// Workbook returns the session's sheet store.
func (s *Session) Workbook() *workbook.Workbook {
	return s.wb
}

func systemPrompt(wb *workbook.Workbook, previewRows int) string {
	var b strings.Builder
	b.WriteString("You are a data analyst answering questions about an uploaded spreadsheet.\n")
	b.WriteString("Use the provided tools to inspect and transform the data; never invent values.\n")
	b.WriteString("Column headers have been normalized to snake_case canonical names; use resolve_column when the user's wording does not obviously match a canonical name.\n")
	b.WriteString("When a tool reports a failure, read its message, correct the call, and try again.\n")
	b.WriteString("Answer concisely with the numbers you computed.\n\n")
	b.WriteString("Here is a preview of the workbook:\n\n")
	b.WriteString(wb.PreviewMarkdown(previewRows))
	return b.String()
}

// Ask runs the agent loop for one user question and returns the final
// assistant answer. Conversation history accumulates across calls.
func (s *Session) Ask(ctx context.Context, question string) (string, *errinfo.ErrorInfo) {
	if strings.TrimSpace(question) == "" {
		return "", errinfo.ValidationFailed(errinfo.PhaseChat, "question is empty")
	}
	if s.client == nil {
		return "", errinfo.ProviderNotConfigured(errinfo.PhaseChat)
	}
	s.messages = append(s.messages, llm.ChatMessage{Role: "user", Content: question})

	s.logger.Info("agent.loop_start", "session_id", s.ID, "question_length", len(question))
	loopStart := time.Now()
	totalToolCalls := 0

	for turn := 0; turn < s.maxTurns; turn++ {
		s.logger.Info("agent.api_request", "session_id", s.ID, "turn", turn, "messages", len(s.messages))
		apiStart := time.Now()
		resp, err := s.client.ChatWithTools(ctx, s.apiKey, s.model, s.messages, AnalystTools)
		if err != nil {
			s.logger.Warn("agent.api_error", "session_id", s.ID, "turn", turn, "error", err.Error())
			return "", mapLLMError(err)
		}
		s.logger.Info("agent.api_response", "session_id", s.ID, "turn", turn,
			"elapsed_ms", time.Since(apiStart).Milliseconds(),
			"tool_call_count", len(resp.ToolCalls), "finish_reason", resp.FinishReason)

		if len(resp.ToolCalls) == 0 {
			answer := strings.TrimSpace(resp.Content)
			s.messages = append(s.messages, llm.ChatMessage{Role: "assistant", Content: resp.Content})
			s.logger.Info("agent.loop_complete", "session_id", s.ID,
				"total_turns", turn+1, "total_tool_calls", totalToolCalls,
				"total_elapsed_ms", time.Since(loopStart).Milliseconds())
			return answer, nil
		}

		toolCalls := resp.ToolCalls
		if len(toolCalls) > maxToolCallsPerTurn {
			toolCalls = toolCalls[:maxToolCallsPerTurn]
		}
		s.messages = append(s.messages, llm.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: toolCalls,
		})

		for _, call := range toolCalls {
			argsSummary := call.Function.Arguments
			if len(argsSummary) > 200 {
				argsSummary = argsSummary[:200] + "..."
			}
			s.logger.Info("agent.tool_start", "session_id", s.ID, "tool", call.Function.Name, "args_summary", argsSummary)

			toolStart := time.Now()
			result, toolErr := s.handler.Execute(call)
			if toolErr != nil {
				result = fmt.Sprintf("Error: %s", toolErr.Error())
				s.logger.Warn("agent.tool_error", "session_id", s.ID, "tool", call.Function.Name, "error", toolErr.Error())
			}
			s.logger.Info("agent.tool_complete", "session_id", s.ID, "tool", call.Function.Name,
				"elapsed_ms", time.Since(toolStart).Milliseconds(), "result_bytes", len(result))
			totalToolCalls++

			s.messages = append(s.messages, llm.ChatMessage{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}

	s.logger.Warn("agent.loop_exhausted", "session_id", s.ID, "max_turns", s.maxTurns)
	return "", errinfo.OperationFailed(errinfo.PhaseChat,
		fmt.Sprintf("no final answer after %d turns", s.maxTurns))
}

func mapLLMError(err error) *errinfo.ErrorInfo {
	switch {
	case errors.Is(err, context.Canceled):
		return errinfo.UserCanceled(errinfo.PhaseChat)
	case errors.Is(err, llm.ErrUnauthorized):
		return errinfo.ProviderAuthFailed(errinfo.PhaseChat)
	case errors.Is(err, llm.ErrRateLimited), errors.Is(err, llm.ErrUnavailable), errors.Is(err, llm.ErrEgressBlocked):
		return errinfo.ProviderUnavailable(errinfo.PhaseChat, err.Error())
	default:
		return errinfo.ProviderUnavailable(errinfo.PhaseChat, err.Error())
	}
}
