package classify

// Intent is a classified message category.
type Intent string

const (
	IntentGreeting         Intent = "greeting"
	IntentOrderStatus      Intent = "order_status"
	IntentBilling          Intent = "billing"
	IntentReturns          Intent = "returns"
	IntentAccount          Intent = "account"
	IntentProductInfo      Intent = "product_info"
	IntentComplaint        Intent = "complaint"
	IntentCompliment       Intent = "compliment"
	IntentTechnicalSupport Intent = "technical_support"
	IntentCancellation     Intent = "cancellation"

	// IntentGeneral is the fallback when nothing scores.
	IntentGeneral Intent = "general"
)

// defaultRegistry declares the intent categories in priority order.
// Declaration order is the tie-break: when two categories tie for the
// maximum score, the earlier one wins. The original service resolved ties
// by unordered map iteration; this registry makes the choice stable.
func defaultRegistry() []Category {
	return []Category{
		NewCategory(string(IntentGreeting), `\b(hello|hi|hey|good morning|good afternoon|good evening)\b`),
		NewCategory(string(IntentOrderStatus), `\b(track|tracking|order|delivery|shipped|shipping)\b`),
		NewCategory(string(IntentBilling), `\b(bill|charge|payment|invoice|refund|money|cost|price)\b`),
		NewCategory(string(IntentReturns), `\b(return|exchange|defective|damaged|broken|wrong item)\b`),
		NewCategory(string(IntentAccount), `\b(password|login|account|profile|settings|username)\b`),
		NewCategory(string(IntentProductInfo), `\b(product|item|specification|details|features|size)\b`),
		NewCategory(string(IntentComplaint), `\b(complaint|dissatisfied|problem|issue|frustrated|angry|terrible)\b`),
		NewCategory(string(IntentCompliment), `\b(great|excellent|amazing|satisfied|happy|love|perfect)\b`),
		NewCategory(string(IntentTechnicalSupport), `\b(error|bug|not working|broken|crash|technical)\b`),
		NewCategory(string(IntentCancellation), `\b(cancel|cancellation|stop|remove)\b`),
	}
}

// Classifier scores messages against a fixed intent registry.
type Classifier struct {
	registry []Category
}

// NewClassifier creates a classifier over the default intent registry.
func NewClassifier() *Classifier {
	return &Classifier{registry: defaultRegistry()}
}

// NewClassifierWithRegistry creates a classifier over a custom registry.
// Registry order defines tie-break priority.
func NewClassifierWithRegistry(registry []Category) *Classifier {
	return &Classifier{registry: registry}
}

// Intents returns the registry's category names in priority order.
func (c *Classifier) Intents() []Intent {
	out := make([]Intent, 0, len(c.registry))
	for _, cat := range c.registry {
		out = append(out, Intent(cat.Name))
	}
	return out
}

// Classify returns the best-scoring intent for a message, or
// IntentGeneral when nothing matches. Never fails.
func (c *Classifier) Classify(message string) Intent {
	scores := Score(message, c.registry)

	best := IntentGeneral
	bestScore := 0
	for _, cat := range c.registry {
		// Strict greater-than keeps the first-declared winner on ties.
		if s := scores[cat.Name]; s > bestScore {
			best = Intent(cat.Name)
			bestScore = s
		}
	}
	return best
}
