// Package metrics aggregates per-turn interaction samples into rolled-up
// reports. Samples live in memory; an optional SQLite archive persists
// them across restarts.
package metrics

import "time"

// Sample is one recorded interaction.
type Sample struct {
	UserID       string        `json:"user_id"`
	Intent       string        `json:"intent"`
	ResponseTime time.Duration `json:"response_time"`
	Escalated    bool          `json:"escalated"`
	Failed       bool          `json:"failed"`
	MessageLen   int           `json:"message_length"`
	ResponseLen  int           `json:"response_length"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Feedback is one user satisfaction rating.
type Feedback struct {
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Period bounds a report.
type Period struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Days      int    `json:"days"`
}

// Overview summarizes a period at the top level.
type Overview struct {
	TotalInteractions      int     `json:"total_interactions"`
	UniqueUsers            int     `json:"unique_users"`
	AverageResponseTime    float64 `json:"average_response_time"`
	EscalationRate         float64 `json:"escalation_rate"`
	AvgInteractionsPerUser float64 `json:"avg_interactions_per_user"`
}

// Performance holds latency percentiles and outcome counters.
type Performance struct {
	ResponseTimePercentiles map[string]float64 `json:"response_time_percentiles"`
	TotalEscalations        int                `json:"total_escalations"`
	TotalFailures           int                `json:"total_failures"`
	SuccessRate             float64            `json:"success_rate"`
}

// IntentAnalysis breaks interactions down by classified intent.
type IntentAnalysis struct {
	TopIntents         map[string]int `json:"top_intents"`
	IntentDistribution map[string]int `json:"intent_distribution"`
}

// DailyStats is one row of the daily breakdown.
type DailyStats struct {
	Date            string  `json:"date"`
	Interactions    int     `json:"interactions"`
	UniqueUsers     int     `json:"unique_users"`
	Escalations     int     `json:"escalations"`
	AvgResponseTime float64 `json:"avg_response_time"`
	EscalationRate  float64 `json:"escalation_rate"`
}

// TemporalAnalysis covers hourly and daily distribution.
type TemporalAnalysis struct {
	HourlyDistribution map[int]int  `json:"hourly_distribution"`
	PeakHour           *int         `json:"peak_hour"`
	DailyBreakdown     []DailyStats `json:"daily_breakdown"`
}

// FeedbackEntry is one recent feedback item in a report.
type FeedbackEntry struct {
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedbackAnalysis summarizes user ratings.
type FeedbackAnalysis struct {
	AverageRating      float64         `json:"average_rating"`
	TotalFeedback      int             `json:"total_feedback"`
	RatingDistribution map[int]int     `json:"rating_distribution"`
	SatisfactionRate   float64         `json:"satisfaction_rate"`
	RecentFeedback     []FeedbackEntry `json:"recent_feedback,omitempty"`
}

// QualityIndicators covers message sizing and latency consistency.
type QualityIndicators struct {
	AvgMessageLength    float64 `json:"avg_message_length"`
	AvgResponseLength   float64 `json:"avg_response_length"`
	ResponseConsistency float64 `json:"response_consistency"`
}

// Report is the full rolled-up view for a period.
type Report struct {
	Period            Period            `json:"period"`
	Overview          Overview          `json:"overview"`
	Performance       Performance       `json:"performance"`
	IntentAnalysis    IntentAnalysis    `json:"intent_analysis"`
	TemporalAnalysis  TemporalAnalysis  `json:"temporal_analysis"`
	Feedback          FeedbackAnalysis  `json:"feedback"`
	QualityIndicators QualityIndicators `json:"quality_indicators"`
}

// WindowStats summarizes a trailing time window for dashboards.
type WindowStats struct {
	Interactions    int            `json:"interactions"`
	UniqueUsers     int            `json:"unique_users,omitempty"`
	Escalations     int            `json:"escalations"`
	AvgResponseTime float64        `json:"avg_response_time"`
	TopIntents      map[string]int `json:"top_intents,omitempty"`
}

// RealTimeStats is the live dashboard view.
type RealTimeStats struct {
	CurrentTime        time.Time   `json:"current_time"`
	LastHour           WindowStats `json:"last_hour"`
	Last24h            WindowStats `json:"last_24h"`
	TotalConversations int         `json:"total_conversations"`
}
