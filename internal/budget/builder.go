// Package budget prepares the size-bounded payload for the external
// completion call. Costs are a proxy unit (word count x 1.3), not exact
// token counts; the contract is determinism, not tokenizer accuracy.
package budget

import (
	"errors"
	"strings"

	"deskbot/internal/logging"
	"deskbot/internal/memory"
)

// ErrBudgetTooSmall is returned when the system prompt and current
// message alone exceed the input budget. Truncating either would corrupt
// meaning, so this is a configuration error that must surface.
var ErrBudgetTooSmall = errors.New("budget: system prompt and current message alone exceed input budget")

// Segment is one role-tagged piece of the completion request.
type Segment struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EstimateCost returns the proxy cost of a text segment.
func EstimateCost(content string) float64 {
	return float64(len(strings.Fields(content))) * 1.3
}

// Builder assembles bounded request payloads.
type Builder struct {
	maxInput        float64
	responseReserve float64
}

// NewBuilder creates a builder. responseReserve is held back from
// maxInput for the expected response.
func NewBuilder(maxInput, responseReserve float64) *Builder {
	return &Builder{maxInput: maxInput, responseReserve: responseReserve}
}

// Build produces the ordered segment list: system prompt first, history
// in original order, current message last. If the total cost exceeds the
// available budget, history turns are evicted oldest-first until the
// payload fits or only system+current remain. Greedy and FIFO: re-running
// Build on an already-fitting input is a no-op.
func (b *Builder) Build(systemPrompt string, history []memory.Turn, currentMessage string) ([]Segment, error) {
	available := b.maxInput - b.responseReserve

	fixed := EstimateCost(systemPrompt) + EstimateCost(currentMessage)
	if fixed > available {
		logging.BudgetDebug("fixed cost %.1f exceeds available %.1f", fixed, available)
		return nil, ErrBudgetTooSmall
	}

	total := fixed
	for _, turn := range history {
		total += EstimateCost(turn.Content)
	}

	// Evict oldest history turns until under budget.
	start := 0
	for total > available && start < len(history) {
		total -= EstimateCost(history[start].Content)
		start++
	}
	if start > 0 {
		logging.BudgetDebug("evicted %d oldest history turn(s), cost %.1f/%.1f", start, total, available)
	}

	segments := make([]Segment, 0, len(history)-start+2)
	segments = append(segments, Segment{Role: "system", Content: systemPrompt})
	for _, turn := range history[start:] {
		segments = append(segments, Segment{Role: string(turn.Role), Content: turn.Content})
	}
	segments = append(segments, Segment{Role: "user", Content: currentMessage})
	return segments, nil
}

// Cost returns the total proxy cost of a segment list.
func Cost(segments []Segment) float64 {
	total := 0.0
	for _, seg := range segments {
		total += EstimateCost(seg.Content)
	}
	return total
}
