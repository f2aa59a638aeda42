// Package escalate decides when a conversation should be routed to a
// human agent. Four rules run in order and short-circuit on the first
// hit: explicit keywords, frustration patterns, conversation length, and
// repeated-issue detection. Everything but the rule order is tunable
// through configuration.
package escalate

import (
	"regexp"
	"strings"

	"deskbot/internal/classify"
	"deskbot/internal/config"
	"deskbot/internal/logging"
	"deskbot/internal/memory"
)

// Reason identifies which rule triggered an escalation.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonKeyword        Reason = "keyword"
	ReasonFrustration    Reason = "frustration"
	ReasonLength         Reason = "length"
	ReasonRepeatedIntent Reason = "repeated_intent"
)

// Decision is the outcome of evaluating one turn.
type Decision struct {
	Escalate bool
	Reason   Reason
}

// Engine evaluates escalation rules against a message and its history.
type Engine struct {
	keywords        []string
	frustration     []*regexp.Regexp
	lengthThreshold int
	recentWindow    int
	repeatCount     int
	proneIntents    map[classify.Intent]bool
	classifier      *classify.Classifier
}

// New creates an escalation engine from configuration. The classifier is
// used by the repeated-issue rule to re-classify recent user turns.
func New(cfg config.EscalationConfig, classifier *classify.Classifier) (*Engine, error) {
	frustration := make([]*regexp.Regexp, 0, len(cfg.FrustrationPatterns))
	for _, p := range cfg.FrustrationPatterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, err
		}
		frustration = append(frustration, re)
	}

	prone := make(map[classify.Intent]bool, len(cfg.ProneIntents))
	for _, intent := range cfg.ProneIntents {
		prone[classify.Intent(intent)] = true
	}

	return &Engine{
		keywords:        cfg.Keywords,
		frustration:     frustration,
		lengthThreshold: cfg.LengthThreshold,
		recentWindow:    cfg.RecentWindow,
		repeatCount:     cfg.RepeatCount,
		proneIntents:    prone,
		classifier:      classifier,
	}, nil
}

// Decide evaluates the rules in order against the current message and
// the conversation history (which includes the current user turn).
//
// Rule 1 has no tolerance for false negatives: an exact keyword always
// escalates. Rules 2-4 are heuristics.
func (e *Engine) Decide(message string, history []memory.Turn) Decision {
	lower := strings.ToLower(message)

	// 1. Explicit keyword containment.
	for _, kw := range e.keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			logging.Escalate("keyword rule hit: %q", kw)
			return Decision{Escalate: true, Reason: ReasonKeyword}
		}
	}

	// 2. Frustration patterns.
	for _, re := range e.frustration {
		if re.MatchString(lower) {
			logging.Escalate("frustration rule hit: %s", re.String())
			return Decision{Escalate: true, Reason: ReasonFrustration}
		}
	}

	// 3. Conversation length.
	if len(history) > e.lengthThreshold {
		logging.Escalate("length rule hit: %d turns > %d", len(history), e.lengthThreshold)
		return Decision{Escalate: true, Reason: ReasonLength}
	}

	// 4. Repeated issue: within the recent window, enough user turns all
	// classify to the same escalation-prone intent.
	if d := e.repeatedIssue(history); d.Escalate {
		return d
	}

	return Decision{}
}

func (e *Engine) repeatedIssue(history []memory.Turn) Decision {
	if len(history) < e.recentWindow {
		return Decision{}
	}

	recent := history[len(history)-e.recentWindow:]
	var userTurns []memory.Turn
	for _, turn := range recent {
		if turn.Role == memory.RoleUser {
			userTurns = append(userTurns, turn)
		}
	}
	if len(userTurns) < e.repeatCount {
		return Decision{}
	}

	first := e.classifier.Classify(userTurns[0].Content)
	if !e.proneIntents[first] {
		return Decision{}
	}
	for _, turn := range userTurns[1:] {
		if e.classifier.Classify(turn.Content) != first {
			return Decision{}
		}
	}

	logging.Escalate("repeated-intent rule hit: %s x%d", first, len(userTurns))
	return Decision{Escalate: true, Reason: ReasonRepeatedIntent}
}
