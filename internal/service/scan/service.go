package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/labelscan/backend/internal/model/label"
	"github.com/labelscan/backend/internal/model/session"
	sessionstore "github.com/labelscan/backend/internal/service/session"
	"github.com/labelscan/backend/internal/service/vision"
)

var (
	ErrSessionIDRequired = errors.New("session id is required")
	ErrSessionNotFound   = errors.New("session not found or expired")
	ErrQuestionRequired  = errors.New("message is required for follow-up questions")
)

// Analyzer extracts a label analysis from an image.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType string) (*label.Analysis, error)
}

// Conversation produces text about a stored analysis.
type Conversation interface {
	Summarize(ctx context.Context, analysis *label.Analysis) (string, error)
	FollowUp(ctx context.Context, analysis *label.Analysis, question string) (string, error)
}

// SessionStore keeps analyses behind opaque session ids.
type SessionStore interface {
	Create(ctx context.Context, analysis *label.Analysis) (session.Session, error)
	Get(ctx context.Context, id string) (session.Session, error)
}

// AnalyzeResult is returned for an accepted label image.
type AnalyzeResult struct {
	SessionID string
	Summary   string
	Analysis  *label.Analysis
	// FallbackUsed is set when Summary was built locally because the conversation call failed.
	FallbackUsed bool
}

// ChatInput is a later request against an existing session.
type ChatInput struct {
	SessionID  string
	Message    string
	IsFollowUp bool
}

// ChatResult carries the reply to a ChatInput.
type ChatResult struct {
	Response   string
	IsFollowUp bool
}

// Service orchestrates analyze, summarize and follow-up across one session.
type Service struct {
	analyzer     Analyzer
	conversation Conversation
	sessions     SessionStore
}

// NewService wires the orchestrator. All collaborators are required.
func NewService(analyzer Analyzer, conversation Conversation, sessions SessionStore) *Service {
	return &Service{
		analyzer:     analyzer,
		conversation: conversation,
		sessions:     sessions,
	}
}

// Analyze runs extraction, stores the result in a new session and produces the
// first summary. A failed extraction creates no session. A failed summary falls
// back to a locally built one.
func (s *Service) Analyze(ctx context.Context, image []byte, mimeType string) (*AnalyzeResult, error) {
	analysis, err := s.analyzer.Analyze(ctx, image, mimeType)
	if err != nil {
		return nil, err
	}
	if analysis == nil || analysis.Error {
		// 识别结果带错误标记时不允许建会话
		return nil, &vision.AnalysisError{Kind: vision.KindUnreadable, Message: errorMessage(analysis)}
	}

	sess, err := s.sessions.Create(ctx, analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	log.Printf("[scan] session=%s created for product=%q", sess.ID, analysis.ProductName)

	result := &AnalyzeResult{
		SessionID: sess.ID,
		Analysis:  sess.Analysis,
	}

	summary, err := s.conversation.Summarize(ctx, sess.Analysis)
	if err != nil || strings.TrimSpace(summary) == "" {
		log.Printf("[scan] session=%s summary failed, using local fallback: %v", sess.ID, err)
		result.Summary = FallbackSummary(sess.Analysis)
		result.FallbackUsed = true
		return result, nil
	}

	result.Summary = summary
	return result, nil
}

// Chat answers a summary or follow-up request for an existing session.
// Conversation failures are returned as-is; there is no fallback on this path.
func (s *Service) Chat(ctx context.Context, input ChatInput) (*ChatResult, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}

	question := strings.TrimSpace(input.Message)
	if input.IsFollowUp && question == "" {
		return nil, ErrQuestionRequired
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessionstore.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if input.IsFollowUp {
		answer, err := s.conversation.FollowUp(ctx, sess.Analysis, question)
		if err != nil {
			return nil, err
		}
		log.Printf("[scan] session=%s answered follow-up, length=%d", sessionID, len(answer))
		return &ChatResult{Response: answer, IsFollowUp: true}, nil
	}

	summary, err := s.conversation.Summarize(ctx, sess.Analysis)
	if err != nil {
		return nil, err
	}
	log.Printf("[scan] session=%s re-summarized, length=%d", sessionID, len(summary))
	return &ChatResult{Response: summary}, nil
}

// FallbackSummary builds a plain summary from the structured fields alone.
func FallbackSummary(analysis *label.Analysis) string {
	if analysis == nil {
		return "I scanned the label, but could not prepare a summary right now."
	}

	var parts []string

	name := strings.TrimSpace(analysis.ProductName)
	if name == "" {
		name = "This product"
	}

	if len(analysis.Ingredients) > 0 {
		parts = append(parts, fmt.Sprintf("%s contains %s.", name, strings.Join(analysis.Ingredients, ", ")))
	} else {
		parts = append(parts, fmt.Sprintf("%s was scanned, but no ingredient list was found.", name))
	}

	if calories := analysis.NutritionFacts.Calories; calories != nil {
		serving := ""
		if size := strings.TrimSpace(analysis.NutritionFacts.ServingSize); size != "" {
			serving = " per " + size
		}
		parts = append(parts, fmt.Sprintf("It has %s calories%s.", strconv.FormatFloat(*calories, 'f', -1, 64), serving))
	}

	return strings.Join(parts, " ")
}

func errorMessage(analysis *label.Analysis) string {
	if analysis == nil || analysis.ErrorMessage == "" {
		return "label analysis returned no result"
	}
	return analysis.ErrorMessage
}
