package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelscan/backend/internal/testutil"
)

func newTestService(t *testing.T, fake *testutil.FakeChatModel, timeout time.Duration) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), fake, timeout)
	require.NoError(t, err)
	return svc
}

func TestSummarizeSendsSystemAndAnalysis(t *testing.T) {
	fake := &testutil.FakeChatModel{Reply: "  Choco Bar is a sweet snack made mostly of sugar and cocoa.  "}
	svc := newTestService(t, fake, 0)

	summary, err := svc.Summarize(context.Background(), sampleAnalysis())
	require.NoError(t, err)
	assert.Equal(t, "Choco Bar is a sweet snack made mostly of sugar and cocoa.", summary)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 2)
	assert.Equal(t, schema.System, calls[0][0].Role)
	assert.Equal(t, summarySystemPrompt, calls[0][0].Content)
	assert.Equal(t, schema.User, calls[0][1].Role)
	assert.Equal(t, BuildSummaryPrompt(sampleAnalysis()), calls[0][1].Content)
}

func TestFollowUpReportsMissingInformation(t *testing.T) {
	// Scripted model that follows the instruction: answers only what the embedded analysis holds.
	fake := &testutil.FakeChatModel{Respond: func(input []*schema.Message) (string, error) {
		query := input[len(input)-1].Content
		if strings.Contains(query, "Is this vegan?") && strings.Contains(query, `"certifications": []`) {
			return MissingInfoPhrase + " The label lists sugar and cocoa and no allergens.", nil
		}
		return "unexpected prompt", nil
	}}
	svc := newTestService(t, fake, 0)

	answer, err := svc.FollowUp(context.Background(), sampleAnalysis(), "Is this vegan?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(answer, MissingInfoPhrase))
	assert.NotContains(t, strings.ToLower(answer), "certified vegan")

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, followUpSystemPrompt, calls[0][0].Content)
}

func TestConversationErrors(t *testing.T) {
	boom := errors.New("upstream unavailable")

	t.Run("model failure", func(t *testing.T) {
		svc := newTestService(t, &testutil.FakeChatModel{Err: boom}, 0)
		_, err := svc.Summarize(context.Background(), sampleAnalysis())

		var convErr *ConversationError
		require.True(t, errors.As(err, &convErr))
		assert.Equal(t, "summarize", convErr.Op)
	})

	t.Run("empty reply", func(t *testing.T) {
		svc := newTestService(t, &testutil.FakeChatModel{Reply: "   "}, 0)
		_, err := svc.FollowUp(context.Background(), sampleAnalysis(), "how much sugar?")
		assert.ErrorIs(t, err, ErrEmptyReply)
	})

	t.Run("nil analysis", func(t *testing.T) {
		fake := &testutil.FakeChatModel{Reply: "ok"}
		svc := newTestService(t, fake, 0)
		_, err := svc.Summarize(context.Background(), nil)
		assert.ErrorIs(t, err, ErrAnalysisRequired)
		assert.Zero(t, fake.CallCount())
	})

	t.Run("timeout", func(t *testing.T) {
		svc := newTestService(t, &testutil.FakeChatModel{Block: true}, 20*time.Millisecond)
		_, err := svc.Summarize(context.Background(), sampleAnalysis())

		var convErr *ConversationError
		assert.True(t, errors.As(err, &convErr))
	})
}

func TestNewServiceRequiresModel(t *testing.T) {
	_, err := NewService(context.Background(), nil, 0)
	assert.Error(t, err)
}
