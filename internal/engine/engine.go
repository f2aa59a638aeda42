// Package engine runs the per-turn conversation pipeline: sanitize,
// classify and extract, decide escalation, answer from the knowledge
// base or the completion service, update memory, record metrics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"deskbot/internal/budget"
	"deskbot/internal/classify"
	"deskbot/internal/completion"
	"deskbot/internal/config"
	"deskbot/internal/escalate"
	"deskbot/internal/extract"
	"deskbot/internal/knowledge"
	"deskbot/internal/logging"
	"deskbot/internal/memory"
	"deskbot/internal/metrics"
	"deskbot/internal/text"
)

// ResponseType identifies how a turn's response was produced.
type ResponseType string

const (
	TypeAIResponse ResponseType = "ai_response"
	TypeEscalation ResponseType = "escalation"
	TypeError      ResponseType = "error"
)

// ErrEmptyMessage is returned when a message is empty after sanitization.
var ErrEmptyMessage = errors.New("engine: message is empty")

// Result is the outcome of processing one turn.
type Result struct {
	Response         string              `json:"response"`
	UserID           string              `json:"user_id"`
	RequestID        string              `json:"request_id"`
	Intent           classify.Intent     `json:"intent"`
	Entities         map[string][]string `json:"entities"`
	Type             ResponseType        `json:"response_type"`
	ResponseTime     float64             `json:"response_time"`
	Escalated        bool                `json:"escalated"`
	EscalationReason escalate.Reason     `json:"escalation_reason,omitempty"`
	Failed           bool                `json:"failed,omitempty"`
	Timestamp        time.Time           `json:"timestamp"`
}

// fallbacks maps completion failure kinds to fixed user-facing replies.
var fallbacks = map[completion.FailureKind]string{
	completion.FailureRateLimited: "I'm experiencing high demand right now. Please try again in a moment.",
	completion.FailureAuth:        "I'm having trouble connecting to my AI service. Please contact support.",
	completion.FailureTransient:   "I'm experiencing technical difficulties. Please try again or contact support.",
	completion.FailureUnknown:     "I apologize for the inconvenience. Please try again or contact our support team.",
}

// Engine is the conversation processor. Safe for concurrent use across
// users; per-user turn ordering is the caller's responsibility.
type Engine struct {
	cfg        config.Config
	classifier *classify.Classifier
	extractor  *extract.Extractor
	escalator  *escalate.Engine
	store      *memory.Store
	budgeter   *budget.Builder
	kb         *knowledge.Base
	client     completion.Client
	metrics    *metrics.Aggregator
	timeout    time.Duration
}

// New assembles an engine from configuration, a knowledge base, a
// completion client, and a metrics sink. Non-empty config business
// fields override the knowledge base's, and the knowledge base's
// escalation keyword list feeds the keyword rule alongside the
// configured one.
func New(cfg config.Config, kb *knowledge.Base, client completion.Client, agg *metrics.Aggregator) (*Engine, error) {
	base := *kb
	if cfg.Business.CompanyName != "" {
		base.Business.CompanyName = cfg.Business.CompanyName
	}
	if cfg.Business.SupportHours != "" {
		base.Business.SupportHours = cfg.Business.SupportHours
	}
	if cfg.Business.SupportEmail != "" {
		base.Business.SupportEmail = cfg.Business.SupportEmail
	}
	if cfg.Business.SupportPhone != "" {
		base.Business.SupportPhone = cfg.Business.SupportPhone
	}
	kb = &base

	escCfg := cfg.Escalation
	escCfg.Keywords = mergeKeywords(cfg.Escalation.Keywords, kb.EscalationKeywords)

	classifier := classify.NewClassifier()
	escalator, err := escalate.New(escCfg, classifier)
	if err != nil {
		return nil, fmt.Errorf("failed to build escalation engine: %w", err)
	}
	timeout, err := cfg.LLMTimeout()
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:        cfg,
		classifier: classifier,
		extractor:  extract.NewExtractor(cfg.Extraction.ProductTerms),
		escalator:  escalator,
		store:      memory.NewStore(cfg.Conversation.MaxContextMessages),
		budgeter:   budget.NewBuilder(cfg.Budget.MaxInput, cfg.Budget.ResponseReserve),
		kb:         kb,
		client:     client,
		metrics:    agg,
		timeout:    timeout,
	}, nil
}

// mergeKeywords combines the configured and knowledge-base escalation
// keyword lists, dropping case-insensitive duplicates.
func mergeKeywords(configured, fromKB []string) []string {
	seen := make(map[string]bool, len(configured)+len(fromKB))
	out := make([]string, 0, len(configured)+len(fromKB))
	for _, kw := range append(append([]string{}, configured...), fromKB...) {
		key := strings.ToLower(strings.TrimSpace(kw))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
	}
	return out
}

// ProcessMessage runs the full pipeline for one user message. The only
// errors returned are empty input and budget misconfiguration; external
// failures produce a fallback response with Failed set.
func (e *Engine) ProcessMessage(ctx context.Context, userID, message string) (Result, error) {
	start := time.Now()
	requestID := uuid.NewString()

	sanitized := text.Sanitize(message, e.cfg.Conversation.MaxMessageLength)
	if sanitized == "" {
		return Result{}, ErrEmptyMessage
	}

	logging.Engine("[%s] processing message for user %s len=%d", requestID, userID, len(sanitized))
	logging.EngineDebug("[%s] message: %s", requestID, text.MaskSensitive(sanitized))

	e.store.Append(userID, memory.Turn{Role: memory.RoleUser, Content: sanitized, Timestamp: start})
	history := e.store.Get(userID)

	var intent classify.Intent
	var entities extract.EntityMap
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		intent = e.classifier.Classify(sanitized)
		return nil
	})
	g.Go(func() error {
		entities = e.extractor.Extract(sanitized)
		return nil
	})
	_ = g.Wait()

	logging.EngineDebug("[%s] intent=%s entities=%d", requestID, intent, len(entities.Map()))

	decision := e.escalator.Decide(sanitized, history)

	var response string
	var respType ResponseType
	failed := false

	if decision.Escalate {
		response = e.escalationResponse(intent)
		respType = TypeEscalation
		logging.Engine("[%s] escalated user %s (%s)", requestID, userID, decision.Reason)
	} else if answer, ok := e.kb.Lookup(sanitized); ok {
		response = answer
		respType = TypeAIResponse
	} else {
		var err error
		response, failed, err = e.generate(ctx, requestID, intent, entities, history, sanitized)
		if err != nil {
			return Result{}, err
		}
		respType = TypeAIResponse
		if failed {
			respType = TypeError
		}
	}

	elapsed := time.Since(start)
	e.store.Append(userID, memory.Turn{Role: memory.RoleAssistant, Content: response, Timestamp: time.Now()})

	e.metrics.Record(metrics.Sample{
		UserID:       userID,
		Intent:       string(intent),
		ResponseTime: elapsed,
		Escalated:    decision.Escalate,
		Failed:       failed,
		MessageLen:   len(sanitized),
		ResponseLen:  len(response),
		Timestamp:    start,
	})

	logging.Engine("[%s] done user=%s intent=%s type=%s elapsed=%v", requestID, userID, intent, respType, elapsed)

	return Result{
		Response:         response,
		UserID:           userID,
		RequestID:        requestID,
		Intent:           intent,
		Entities:         entities.Map(),
		Type:             respType,
		ResponseTime:     elapsed.Seconds(),
		Escalated:        decision.Escalate,
		EscalationReason: decision.Reason,
		Failed:           failed,
		Timestamp:        start,
	}, nil
}

// generate calls the completion service with a budgeted payload, mapping
// failures to fixed fallback replies.
func (e *Engine) generate(ctx context.Context, requestID string, intent classify.Intent, entities extract.EntityMap, history []memory.Turn, message string) (string, bool, error) {
	systemPrompt := e.systemPrompt(intent, entities)

	// The current message is the last history turn; budget it separately.
	prior := history[:len(history)-1]
	segments, err := e.budgeter.Build(systemPrompt, prior, message)
	if err != nil {
		return "", false, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	timer := logging.StartTimer(logging.CategoryAPI, "completion call")
	defer timer.StopWithThreshold(5 * time.Second)

	reply, err := e.client.Generate(callCtx, completion.Request{
		Segments:    segments,
		MaxTokens:   e.cfg.LLM.MaxTokens,
		Temperature: e.cfg.LLM.Temperature,
	})
	if err != nil {
		kind := completion.KindOf(err)
		logging.EngineError("[%s] completion failed (%s): %v", requestID, kind, err)
		return fallbacks[kind], true, nil
	}
	return text.FormatResponse(reply, ""), false, nil
}

func (e *Engine) systemPrompt(intent classify.Intent, entities extract.EntityMap) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a helpful customer support assistant for %s.\n\n", e.kb.Business.CompanyName)
	b.WriteString("Your role is to:\n")
	b.WriteString("- Provide accurate, helpful, and friendly customer support\n")
	b.WriteString("- Be empathetic and understanding\n")
	b.WriteString("- Offer specific solutions when possible\n")
	b.WriteString("- Ask clarifying questions if needed\n")
	b.WriteString("- Escalate to human agents when appropriate\n\n")
	fmt.Fprintf(&b, "Business Information:\n- Support Hours: %s\n- Contact Email: %s\n- Phone: %s\n\n",
		e.kb.Business.SupportHours, e.kb.Business.SupportEmail, e.kb.Business.SupportPhone)
	fmt.Fprintf(&b, "Current Intent: %s\n", intent)
	fmt.Fprintf(&b, "Extracted Entities: %v\n\n", entities.Map())
	b.WriteString("Guidelines:\n")
	b.WriteString("- Keep responses concise but complete\n")
	b.WriteString("- Use a friendly, professional tone\n")
	b.WriteString("- If you cannot help, offer to escalate to a human agent\n")
	b.WriteString("- Always try to resolve the customer's issue\n")
	return b.String()
}

func (e *Engine) escalationResponse(intent classify.Intent) string {
	return fmt.Sprintf(
		"I understand you need additional assistance, and I'd be happy to connect you with one of our human support specialists.\n\n"+
			"Here are your options:\n\n"+
			"Email: %s\nPhone: %s\nHours: %s\n\n"+
			"A human agent will be able to provide more personalized assistance with your %s inquiry.\n\n"+
			"Is there anything else I can help you with in the meantime?",
		e.kb.Business.SupportEmail, e.kb.Business.SupportPhone, e.kb.Business.SupportHours, intent)
}

// History returns the stored conversation for a user.
func (e *Engine) History(userID string) []memory.Turn {
	return e.store.Get(userID)
}

// Clear removes a user's conversation. Reports whether one existed.
func (e *Engine) Clear(userID string) bool {
	return e.store.Clear(userID)
}

// Summary reports conversation length and duration for a user.
func (e *Engine) Summary(userID string) memory.Summary {
	return e.store.Summarize(userID)
}

// Users returns the ids with an active conversation.
func (e *Engine) Users() []string {
	return e.store.Users()
}

// RecordFeedback forwards a satisfaction rating to the metrics sink.
func (e *Engine) RecordFeedback(userID string, rating int, comment string) {
	e.metrics.RecordFeedback(metrics.Feedback{UserID: userID, Rating: rating, Comment: comment})
}
