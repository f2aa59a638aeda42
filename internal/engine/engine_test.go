package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskbot/internal/classify"
	"deskbot/internal/completion"
	"deskbot/internal/config"
	"deskbot/internal/escalate"
	"deskbot/internal/knowledge"
	"deskbot/internal/memory"
	"deskbot/internal/metrics"
)

func newTestEngine(t *testing.T, client completion.Client) (*Engine, *metrics.Aggregator) {
	t.Helper()
	agg := metrics.NewAggregator()
	e, err := New(config.DefaultConfig(), knowledge.DefaultBase(), client, agg)
	require.NoError(t, err)
	return e, agg
}

func TestProcessMessageGreeting(t *testing.T) {
	mock := &completion.MockClient{Response: "Hi! How can I help you today?"}
	e, agg := newTestEngine(t, mock)

	res, err := e.ProcessMessage(context.Background(), "alice", "Hello there, I need help")
	require.NoError(t, err)

	assert.Equal(t, "Hi! How can I help you today?", res.Response)
	assert.Equal(t, classify.IntentGreeting, res.Intent)
	assert.Equal(t, TypeAIResponse, res.Type)
	assert.False(t, res.Escalated)
	assert.False(t, res.Failed)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, 1, mock.Calls())

	// User turn and assistant turn both stored.
	history := e.History("alice")
	require.Len(t, history, 2)
	assert.Equal(t, memory.RoleUser, history[0].Role)
	assert.Equal(t, memory.RoleAssistant, history[1].Role)

	samples, _ := agg.Snapshot()
	require.Len(t, samples, 1)
	assert.Equal(t, "alice", samples[0].UserID)
	assert.False(t, samples[0].Failed)
}

func TestProcessMessageKnowledgeBaseBypassesCompletion(t *testing.T) {
	mock := &completion.MockClient{Response: "should not be used"}
	e, _ := newTestEngine(t, mock)

	res, err := e.ProcessMessage(context.Background(), "bob", "how do I track my package")
	require.NoError(t, err)

	assert.Contains(t, res.Response, "track your order")
	assert.Equal(t, TypeAIResponse, res.Type)
	assert.Equal(t, 0, mock.Calls())
}

func TestProcessMessageKeywordEscalation(t *testing.T) {
	mock := &completion.MockClient{Response: "unused"}
	e, agg := newTestEngine(t, mock)

	res, err := e.ProcessMessage(context.Background(), "carol", "Let me speak to a manager")
	require.NoError(t, err)

	assert.True(t, res.Escalated)
	assert.Equal(t, escalate.ReasonKeyword, res.EscalationReason)
	assert.Equal(t, TypeEscalation, res.Type)
	assert.Contains(t, res.Response, "support@yourcompany.com")
	assert.Equal(t, 0, mock.Calls())

	samples, _ := agg.Snapshot()
	require.Len(t, samples, 1)
	assert.True(t, samples[0].Escalated)
}

func TestKnowledgeBaseEscalationKeywordsTrigger(t *testing.T) {
	kb := knowledge.DefaultBase()
	kb.EscalationKeywords = append(kb.EscalationKeywords, "banana incident")

	mock := &completion.MockClient{Response: "unused"}
	e, err := New(config.DefaultConfig(), kb, mock, metrics.NewAggregator())
	require.NoError(t, err)

	// A keyword present only in the knowledge base file still fires rule 1.
	res, err := e.ProcessMessage(context.Background(), "len", "there was a banana incident with my parcel")
	require.NoError(t, err)
	assert.True(t, res.Escalated)
	assert.Equal(t, escalate.ReasonKeyword, res.EscalationReason)
	assert.Equal(t, 0, mock.Calls())
}

func TestConfigBusinessOverridesKnowledgeBase(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Business.CompanyName = "Acme"
	cfg.Business.SupportEmail = "help@acme.test"

	kb := knowledge.DefaultBase()
	e, err := New(cfg, kb, &completion.MockClient{Response: "ok"}, metrics.NewAggregator())
	require.NoError(t, err)

	res, err := e.ProcessMessage(context.Background(), "mia", "I want to speak to a manager")
	require.NoError(t, err)
	assert.Contains(t, res.Response, "help@acme.test")
	assert.NotContains(t, res.Response, "support@yourcompany.com")

	// The caller's knowledge base is left untouched.
	assert.Equal(t, "support@yourcompany.com", kb.Business.SupportEmail)
}

func TestProcessMessageCompletionFailureFallsBack(t *testing.T) {
	mock := &completion.MockClient{Err: &completion.Failure{Kind: completion.FailureRateLimited}}
	e, agg := newTestEngine(t, mock)

	res, err := e.ProcessMessage(context.Background(), "dave", "tell me about pricing plans")
	require.NoError(t, err)

	assert.True(t, res.Failed)
	assert.Equal(t, TypeError, res.Type)
	assert.Equal(t, "I'm experiencing high demand right now. Please try again in a moment.", res.Response)

	// The fallback still becomes an assistant turn.
	history := e.History("dave")
	require.Len(t, history, 2)
	assert.Equal(t, res.Response, history[1].Content)

	samples, _ := agg.Snapshot()
	require.Len(t, samples, 1)
	assert.True(t, samples[0].Failed)
}

func TestProcessMessageFallbackPerFailureKind(t *testing.T) {
	kinds := map[completion.FailureKind]string{
		completion.FailureAuth:      "I'm having trouble connecting to my AI service. Please contact support.",
		completion.FailureTransient: "I'm experiencing technical difficulties. Please try again or contact support.",
		completion.FailureUnknown:   "I apologize for the inconvenience. Please try again or contact our support team.",
	}
	for kind, want := range kinds {
		mock := &completion.MockClient{Err: &completion.Failure{Kind: kind}}
		e, _ := newTestEngine(t, mock)

		res, err := e.ProcessMessage(context.Background(), "erin", "tell me about pricing plans")
		require.NoError(t, err)
		assert.Equal(t, want, res.Response, "kind %s", kind)
		assert.True(t, res.Failed)
	}
}

func TestProcessMessageEmptyInput(t *testing.T) {
	e, agg := newTestEngine(t, &completion.MockClient{})

	_, err := e.ProcessMessage(context.Background(), "frank", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	assert.Empty(t, e.History("frank"))
	samples, _ := agg.Snapshot()
	assert.Empty(t, samples)
}

func TestProcessMessageExtractsEntities(t *testing.T) {
	mock := &completion.MockClient{Response: "Let me check that order."}
	e, _ := newTestEngine(t, mock)

	res, err := e.ProcessMessage(context.Background(), "gina", "my order is late, id ZX81QT77")
	require.NoError(t, err)
	assert.Equal(t, []string{"ZX81QT77"}, res.Entities["order_numbers"])
}

func TestProcessMessageBudgetMisconfiguration(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Budget.MaxInput = 10
	cfg.Budget.ResponseReserve = 9

	e, err := New(cfg, knowledge.DefaultBase(), &completion.MockClient{Response: "x"}, metrics.NewAggregator())
	require.NoError(t, err)

	// A long message that avoids KB keywords and escalation rules.
	_, err = e.ProcessMessage(context.Background(), "hank", "please tell me more regarding available colors and sizes today")
	assert.Error(t, err)
}

func TestClearAndSummary(t *testing.T) {
	mock := &completion.MockClient{Response: "sure"}
	e, _ := newTestEngine(t, mock)

	_, err := e.ProcessMessage(context.Background(), "iris", "tell me about pricing plans")
	require.NoError(t, err)

	sum := e.Summary("iris")
	assert.Equal(t, 2, sum.TurnCount)

	assert.True(t, e.Clear("iris"))
	assert.False(t, e.Clear("iris"))
	assert.Equal(t, 0, e.Summary("iris").TurnCount)
}

func TestConversationCapHoldsAcrossTurns(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Conversation.MaxContextMessages = 4

	e, err := New(cfg, knowledge.DefaultBase(), &completion.MockClient{Response: "noted"}, metrics.NewAggregator())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := e.ProcessMessage(context.Background(), "judy", "tell me about pricing plans")
		require.NoError(t, err)
	}
	assert.Len(t, e.History("judy"), 4)
}

func TestRecordFeedback(t *testing.T) {
	e, agg := newTestEngine(t, &completion.MockClient{Response: "ok"})
	e.RecordFeedback("kate", 5, "great help")

	_, feedback := agg.Snapshot()
	require.Len(t, feedback, 1)
	assert.Equal(t, 5, feedback[0].Rating)
	assert.WithinDuration(t, time.Now(), feedback[0].Timestamp, time.Minute)
}
