package escalate

import (
	"fmt"
	"testing"
	"time"

	"deskbot/internal/classify"
	"deskbot/internal/config"
	"deskbot/internal/memory"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(config.DefaultConfig().Escalation, classify.NewClassifier())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func userTurn(content string) memory.Turn {
	return memory.Turn{Role: memory.RoleUser, Content: content, Timestamp: time.Now()}
}

func assistantTurn(content string) memory.Turn {
	return memory.Turn{Role: memory.RoleAssistant, Content: content, Timestamp: time.Now()}
}

func TestKeywordRuleAlwaysTriggers(t *testing.T) {
	e := newEngine(t)

	d := e.Decide("I want to speak to a manager", nil)
	if !d.Escalate || d.Reason != ReasonKeyword {
		t.Errorf("Decide = %+v, want keyword escalation", d)
	}

	// Case-insensitive substring containment.
	d = e.Decide("MANAGER. NOW.", nil)
	if !d.Escalate || d.Reason != ReasonKeyword {
		t.Errorf("Decide uppercase = %+v, want keyword escalation", d)
	}
}

func TestFrustrationPatterns(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		message string
		want    bool
	}{
		{"this is absolutely horrible service", true},
		{"that is unacceptable", true},
		{"I want a refund immediately", true},
		{"could you check my delivery date", false},
	}
	for _, tt := range tests {
		d := e.Decide(tt.message, nil)
		if d.Escalate != tt.want {
			t.Errorf("Decide(%q) = %+v, want escalate=%v", tt.message, d, tt.want)
		}
		if tt.want && d.Reason != ReasonFrustration {
			t.Errorf("Decide(%q) reason = %s, want frustration", tt.message, d.Reason)
		}
	}
}

func TestLengthThresholdIgnoresContent(t *testing.T) {
	e := newEngine(t)

	history := make([]memory.Turn, 0, 11)
	for i := 0; i < 11; i++ {
		if i%2 == 0 {
			history = append(history, userTurn(fmt.Sprintf("note %d", i)))
		} else {
			history = append(history, assistantTurn(fmt.Sprintf("reply %d", i)))
		}
	}

	d := e.Decide("thanks, just checking in", history)
	if !d.Escalate || d.Reason != ReasonLength {
		t.Errorf("Decide(11 turns) = %+v, want length escalation", d)
	}

	d = e.Decide("thanks, just checking in", history[:9])
	if d.Escalate {
		t.Errorf("Decide(9 turns) = %+v, want no escalation", d)
	}
}

func TestRepeatedIntentRule(t *testing.T) {
	e := newEngine(t)

	// Three user turns in the last six, all billing.
	history := []memory.Turn{
		userTurn("my bill is wrong"),
		assistantTurn("let me look"),
		userTurn("the charge makes no sense"),
		assistantTurn("checking"),
		userTurn("this invoice is double my usual payment"),
		assistantTurn("one moment"),
	}
	d := e.Decide("still waiting on my bill", history)
	if !d.Escalate || d.Reason != ReasonRepeatedIntent {
		t.Errorf("Decide(repeated billing) = %+v, want repeated_intent escalation", d)
	}

	// Mixed intents in the window: no escalation.
	mixed := []memory.Turn{
		userTurn("my bill is wrong"),
		assistantTurn("let me look"),
		userTurn("when will the delivery arrive"),
		assistantTurn("checking"),
		userTurn("what are the item features"),
		assistantTurn("one moment"),
	}
	d = e.Decide("thanks for checking on that", mixed)
	if d.Escalate {
		t.Errorf("Decide(mixed intents) = %+v, want no escalation", d)
	}
}

func TestRepeatedIntentOnlyForProneIntents(t *testing.T) {
	e := newEngine(t)

	// Three user turns all greeting: not escalation-prone.
	history := []memory.Turn{
		userTurn("hello"),
		assistantTurn("hi"),
		userTurn("hey again"),
		assistantTurn("hello"),
		userTurn("good morning"),
		assistantTurn("morning"),
	}
	d := e.Decide("hi there again", history)
	if d.Escalate {
		t.Errorf("Decide(repeated greeting) = %+v, want no escalation", d)
	}
}

func TestCalmShortConversationDoesNotEscalate(t *testing.T) {
	e := newEngine(t)
	d := e.Decide("where can I see my delivery date", []memory.Turn{userTurn("hi")})
	if d.Escalate {
		t.Errorf("Decide = %+v, want no escalation", d)
	}
}
