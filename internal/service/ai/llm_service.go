package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/labelscan/backend/internal/model/label"
)

// DefaultTimeout bounds a single conversation call.
const DefaultTimeout = 45 * time.Second

var (
	ErrEmptyReply       = errors.New("model returned an empty reply")
	ErrAnalysisRequired = errors.New("analysis is required")
)

// ConversationError wraps any failure of a summary or follow-up call.
type ConversationError struct {
	Op  string
	Err error
}

func (e *ConversationError) Error() string {
	return fmt.Sprintf("conversation %s failed: %v", e.Op, e.Err)
}

func (e *ConversationError) Unwrap() error {
	return e.Err
}

// Service answers questions about a single label analysis. It keeps no per-session state.
type Service struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	timeout time.Duration
}

// NewService compiles the prompt chain around chatModel.
func NewService(ctx context.Context, chatModel model.BaseChatModel, timeout time.Duration) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile conversation chain: %w", err)
	}

	return &Service{
		chain:   runnable,
		timeout: timeout,
	}, nil
}

// Summarize produces a short spoken digest of the analysis.
func (s *Service) Summarize(ctx context.Context, analysis *label.Analysis) (string, error) {
	if analysis == nil {
		return "", &ConversationError{Op: "summarize", Err: ErrAnalysisRequired}
	}
	return s.invoke(ctx, "summarize", summarySystemPrompt, BuildSummaryPrompt(analysis))
}

// FollowUp answers question using only the analysis.
func (s *Service) FollowUp(ctx context.Context, analysis *label.Analysis, question string) (string, error) {
	if analysis == nil {
		return "", &ConversationError{Op: "follow-up", Err: ErrAnalysisRequired}
	}
	return s.invoke(ctx, "follow-up", followUpSystemPrompt, BuildFollowUpPrompt(analysis, question))
}

func (s *Service) invoke(ctx context.Context, op, system, query string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	response, err := s.chain.Invoke(callCtx, map[string]any{
		"system": system,
		"query":  query,
	})
	if err != nil {
		log.Printf("[ai] %s failed after %s: %v", op, time.Since(started).Round(time.Millisecond), err)
		return "", &ConversationError{Op: op, Err: err}
	}

	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", &ConversationError{Op: op, Err: ErrEmptyReply}
	}

	reply := strings.TrimSpace(response.Content)
	log.Printf("[ai] %s done in %s, length=%d", op, time.Since(started).Round(time.Millisecond), len(reply))
	return reply, nil
}
