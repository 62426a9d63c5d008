package vision

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/labelscan/backend/internal/model/label"
)

// DefaultTimeout bounds a single extraction call.
const DefaultTimeout = 45 * time.Second

// Options 控制标签识别的调用参数。
type Options struct {
	Timeout      time.Duration
	MaxImageEdge int
}

// Analyzer turns a label photo into a structured Analysis using a vision model.
type Analyzer struct {
	chatModel model.BaseChatModel
	opts      Options
}

// NewAnalyzer creates an analyzer backed by chatModel.
func NewAnalyzer(chatModel model.BaseChatModel, opts Options) (*Analyzer, error) {
	if chatModel == nil {
		return nil, errors.New("vision chat model is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxImageEdge == 0 {
		opts.MaxImageEdge = DefaultMaxImageEdge
	}
	return &Analyzer{chatModel: chatModel, opts: opts}, nil
}

// Analyze extracts label content from image. Every failure is an *AnalysisError.
// The caller's buffer is never modified.
func (a *Analyzer) Analyze(ctx context.Context, image []byte, mimeType string) (*label.Analysis, error) {
	if isPlaceholder(image) {
		return nil, invalidInput("image is empty")
	}

	resolved, err := resolveMIMEType(image, mimeType)
	if err != nil {
		return nil, err
	}

	payload := prepareImage(image, resolved, a.opts.MaxImageEdge)
	messages := []*schema.Message{
		schema.SystemMessage(extractionSystemPrompt),
		{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{Type: schema.ChatMessagePartTypeText, Text: extractionUserPrompt},
				{
					Type: schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{
						URL:    dataURL(resolved, payload),
						Detail: schema.ImageURLDetailHigh,
					},
				},
			},
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	started := time.Now()
	resp, err := a.chatModel.Generate(callCtx, messages)
	if err != nil {
		log.Printf("[vision] model call failed after %s: %v", time.Since(started).Round(time.Millisecond), err)
		return nil, upstream("vision model call failed", err)
	}
	if resp == nil {
		return nil, upstream("vision model returned no message", ErrEmptyResponse)
	}

	analysis, err := DecodeAnalysis(resp.Content)
	if err != nil {
		log.Printf("[vision] unparseable model response (%d bytes): %v", len(resp.Content), err)
		return nil, upstream("vision model response is not valid analysis json", err)
	}

	if analysis.Error {
		log.Printf("[vision] label unreadable: %s", analysis.ErrorMessage)
		return nil, &AnalysisError{Kind: KindUnreadable, Message: analysis.ErrorMessage}
	}

	log.Printf("[vision] extracted product=%q ingredients=%d in %s", analysis.ProductName, len(analysis.Ingredients), time.Since(started).Round(time.Millisecond))
	return analysis, nil
}
