package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"deskbot/internal/logging"
)

// Aggregator collects samples and feedback and rolls them up on demand.
// All methods are safe for concurrent use.
type Aggregator struct {
	mu       sync.RWMutex
	samples  []Sample
	feedback []Feedback
	archive  *Archive
	now      func() time.Time
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{now: time.Now}
}

// AttachArchive makes every subsequent Record and RecordFeedback also
// persist to the archive. Archive write failures are logged, not
// propagated; the in-memory record always succeeds.
func (a *Aggregator) AttachArchive(archive *Archive) {
	a.mu.Lock()
	a.archive = archive
	a.mu.Unlock()
}

// Record appends one interaction sample. A zero timestamp is filled with
// the current time.
func (a *Aggregator) Record(s Sample) {
	if s.Timestamp.IsZero() {
		s.Timestamp = a.now()
	}
	a.mu.Lock()
	a.samples = append(a.samples, s)
	archive := a.archive
	a.mu.Unlock()

	if archive != nil {
		if err := archive.SaveSample(s); err != nil {
			logging.Metrics("failed to archive sample: %v", err)
		}
	}
	logging.MetricsDebug("recorded sample user=%s intent=%s escalated=%v failed=%v", s.UserID, s.Intent, s.Escalated, s.Failed)
}

// RecordFeedback appends one satisfaction rating.
func (a *Aggregator) RecordFeedback(f Feedback) {
	if f.Timestamp.IsZero() {
		f.Timestamp = a.now()
	}
	a.mu.Lock()
	a.feedback = append(a.feedback, f)
	archive := a.archive
	a.mu.Unlock()

	if archive != nil {
		if err := archive.SaveFeedback(f); err != nil {
			logging.Metrics("failed to archive feedback: %v", err)
		}
	}
	logging.Metrics("recorded feedback user=%s rating=%d/5", f.UserID, f.Rating)
}

// Load seeds the aggregator with previously archived data.
func (a *Aggregator) Load(samples []Sample, feedback []Feedback) {
	a.mu.Lock()
	a.samples = append(a.samples, samples...)
	a.feedback = append(a.feedback, feedback...)
	a.mu.Unlock()
}

// Snapshot returns copies of the raw sample and feedback logs.
func (a *Aggregator) Snapshot() ([]Sample, []Feedback) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	samples := make([]Sample, len(a.samples))
	copy(samples, a.samples)
	feedback := make([]Feedback, len(a.feedback))
	copy(feedback, a.feedback)
	return samples, feedback
}

// Report rolls up the trailing N days (today inclusive).
func (a *Aggregator) Report(days int) Report {
	a.mu.RLock()
	defer a.mu.RUnlock()

	endDate := dateOf(a.now())
	startDate := endDate.AddDate(0, 0, -(days - 1))
	period := Period{
		StartDate: startDate.Format("2006-01-02"),
		EndDate:   endDate.Format("2006-01-02"),
		Days:      days,
	}

	var samples []Sample
	for _, s := range a.samples {
		d := dateOf(s.Timestamp)
		if !d.Before(startDate) && !d.After(endDate) {
			samples = append(samples, s)
		}
	}
	var feedback []Feedback
	for _, f := range a.feedback {
		d := dateOf(f.Timestamp)
		if !d.Before(startDate) && !d.After(endDate) {
			feedback = append(feedback, f)
		}
	}

	if len(samples) == 0 {
		return Report{
			Period:         period,
			Performance:    Performance{ResponseTimePercentiles: map[string]float64{}},
			IntentAnalysis: IntentAnalysis{TopIntents: map[string]int{}, IntentDistribution: map[string]int{}},
			TemporalAnalysis: TemporalAnalysis{
				HourlyDistribution: map[int]int{},
				DailyBreakdown:     []DailyStats{},
			},
			Feedback: FeedbackAnalysis{RatingDistribution: map[int]int{}},
		}
	}

	total := len(samples)
	users := make(map[string]bool)
	intents := make(map[string]int)
	hourly := make(map[int]int)
	var totalRT, totalMsgLen, totalRespLen float64
	escalations, failures := 0, 0
	times := make([]float64, 0, total)

	for _, s := range samples {
		users[s.UserID] = true
		intents[s.Intent]++
		hourly[s.Timestamp.Hour()]++
		rt := s.ResponseTime.Seconds()
		totalRT += rt
		times = append(times, rt)
		totalMsgLen += float64(s.MessageLen)
		totalRespLen += float64(s.ResponseLen)
		if s.Escalated {
			escalations++
		}
		if s.Failed {
			failures++
		}
	}
	sort.Float64s(times)

	escalationRate := float64(escalations) / float64(total) * 100
	peak := peakHour(hourly)

	return Report{
		Period: period,
		Overview: Overview{
			TotalInteractions:      total,
			UniqueUsers:            len(users),
			AverageResponseTime:    round2(totalRT / float64(total)),
			EscalationRate:         round2(escalationRate),
			AvgInteractionsPerUser: round1(float64(total) / float64(len(users))),
		},
		Performance: Performance{
			ResponseTimePercentiles: map[string]float64{
				"p50": Percentile(times, 50),
				"p90": Percentile(times, 90),
				"p95": Percentile(times, 95),
				"p99": Percentile(times, 99),
			},
			TotalEscalations: escalations,
			TotalFailures:    failures,
			SuccessRate:      round2(100 - escalationRate),
		},
		IntentAnalysis: IntentAnalysis{
			TopIntents:         topN(intents, 10),
			IntentDistribution: intents,
		},
		TemporalAnalysis: TemporalAnalysis{
			HourlyDistribution: hourly,
			PeakHour:           peak,
			DailyBreakdown:     dailyBreakdown(samples, startDate, endDate),
		},
		Feedback: analyzeFeedback(feedback),
		QualityIndicators: QualityIndicators{
			AvgMessageLength:    round1(totalMsgLen / float64(total)),
			AvgResponseLength:   round1(totalRespLen / float64(total)),
			ResponseConsistency: Consistency(times),
		},
	}
}

// RealTime returns trailing-hour and trailing-24h stats.
func (a *Aggregator) RealTime() RealTimeStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := a.now()
	lastHour := now.Add(-time.Hour)
	last24h := now.Add(-24 * time.Hour)

	var hour, day []Sample
	allUsers := make(map[string]bool)
	for _, s := range a.samples {
		allUsers[s.UserID] = true
		if !s.Timestamp.Before(lastHour) {
			hour = append(hour, s)
		}
		if !s.Timestamp.Before(last24h) {
			day = append(day, s)
		}
	}

	dayUsers := make(map[string]bool)
	dayIntents := make(map[string]int)
	dayEscalations := 0
	for _, s := range day {
		dayUsers[s.UserID] = true
		dayIntents[s.Intent]++
		if s.Escalated {
			dayEscalations++
		}
	}

	hourEscalations := 0
	var hourRT float64
	for _, s := range hour {
		hourRT += s.ResponseTime.Seconds()
		if s.Escalated {
			hourEscalations++
		}
	}
	avgHourRT := 0.0
	if len(hour) > 0 {
		avgHourRT = round2(hourRT / float64(len(hour)))
	}

	return RealTimeStats{
		CurrentTime: now,
		LastHour: WindowStats{
			Interactions:    len(hour),
			Escalations:     hourEscalations,
			AvgResponseTime: avgHourRT,
		},
		Last24h: WindowStats{
			Interactions: len(day),
			UniqueUsers:  len(dayUsers),
			Escalations:  dayEscalations,
			TopIntents:   topN(dayIntents, 5),
		},
		TotalConversations: len(allUsers),
	}
}

// Prune drops samples and feedback older than the retention window.
// Returns how many samples were removed.
func (a *Aggregator) Prune(retentionDays int) int {
	cutoff := a.now().AddDate(0, 0, -retentionDays)

	a.mu.Lock()
	defer a.mu.Unlock()

	before := len(a.samples)
	kept := a.samples[:0]
	for _, s := range a.samples {
		if !s.Timestamp.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	a.samples = kept

	keptFB := a.feedback[:0]
	for _, f := range a.feedback {
		if !f.Timestamp.Before(cutoff) {
			keptFB = append(keptFB, f)
		}
	}
	a.feedback = keptFB

	removed := before - len(a.samples)
	if removed > 0 {
		logging.Metrics("pruned %d sample(s) older than %d days", removed, retentionDays)
	}
	return removed
}

// export caps keep dump files bounded.
const (
	exportSampleCap   = 1000
	exportFeedbackCap = 100
)

type exportFile struct {
	ExportTimestamp time.Time  `json:"export_timestamp"`
	Metrics         Report     `json:"metrics"`
	RawSamples      []Sample   `json:"raw_samples"`
	Feedback        []Feedback `json:"feedback"`
}

// ExportJSON writes the rolled-up report plus the most recent raw data
// to a JSON file.
func (a *Aggregator) ExportJSON(path string, days int) error {
	report := a.Report(days)
	samples, feedback := a.Snapshot()

	if len(samples) > exportSampleCap {
		samples = samples[len(samples)-exportSampleCap:]
	}
	if len(feedback) > exportFeedbackCap {
		feedback = feedback[len(feedback)-exportFeedbackCap:]
	}

	data, err := json.MarshalIndent(exportFile{
		ExportTimestamp: a.now(),
		Metrics:         report,
		RawSamples:      samples,
		Feedback:        feedback,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	logging.Metrics("exported metrics to %s", path)
	return nil
}

// Percentile computes a percentile over sorted data using linear
// interpolation, rounded to two decimals. Empty data yields 0.
func Percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := float64(p) / 100 * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper > len(sorted)-1 {
		upper = len(sorted) - 1
	}
	if lower == upper {
		return round2(sorted[lower])
	}
	weight := index - float64(lower)
	return round2(sorted[lower]*(1-weight) + sorted[upper]*weight)
}

// Consistency scores latency stability from 0 to 100 via the coefficient
// of variation. Fewer than two samples, or a zero mean, scores 100.
func Consistency(times []float64) float64 {
	if len(times) < 2 {
		return 100
	}
	mean := 0.0
	for _, t := range times {
		mean += t
	}
	mean /= float64(len(times))
	if mean == 0 {
		return 100
	}
	variance := 0.0
	for _, t := range times {
		variance += (t - mean) * (t - mean)
	}
	variance /= float64(len(times))
	cv := math.Sqrt(variance) / mean
	return round1(math.Max(0, 100-cv*100))
}

func analyzeFeedback(feedback []Feedback) FeedbackAnalysis {
	if len(feedback) == 0 {
		return FeedbackAnalysis{RatingDistribution: map[int]int{}}
	}

	dist := make(map[int]int)
	total, satisfied := 0, 0
	for _, f := range feedback {
		dist[f.Rating]++
		total += f.Rating
		if f.Rating >= 4 {
			satisfied++
		}
	}

	sorted := make([]Feedback, len(feedback))
	copy(sorted, feedback)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.After(sorted[j].Timestamp) })
	recent := make([]FeedbackEntry, 0, 5)
	for i := 0; i < len(sorted) && i < 5; i++ {
		recent = append(recent, FeedbackEntry{
			Rating:    sorted[i].Rating,
			Comment:   sorted[i].Comment,
			Timestamp: sorted[i].Timestamp,
		})
	}

	return FeedbackAnalysis{
		AverageRating:      round2(float64(total) / float64(len(feedback))),
		TotalFeedback:      len(feedback),
		RatingDistribution: dist,
		SatisfactionRate:   round2(float64(satisfied) / float64(len(feedback)) * 100),
		RecentFeedback:     recent,
	}
}

func dailyBreakdown(samples []Sample, startDate, endDate time.Time) []DailyStats {
	type acc struct {
		interactions int
		escalations  int
		totalRT      float64
		users        map[string]bool
	}
	byDate := make(map[string]*acc)
	for _, s := range samples {
		key := dateOf(s.Timestamp).Format("2006-01-02")
		d := byDate[key]
		if d == nil {
			d = &acc{users: make(map[string]bool)}
			byDate[key] = d
		}
		d.interactions++
		d.totalRT += s.ResponseTime.Seconds()
		d.users[s.UserID] = true
		if s.Escalated {
			d.escalations++
		}
	}

	var breakdown []DailyStats
	for day := startDate; !day.After(endDate); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		row := DailyStats{Date: key}
		if d := byDate[key]; d != nil {
			row.Interactions = d.interactions
			row.UniqueUsers = len(d.users)
			row.Escalations = d.escalations
			row.AvgResponseTime = round2(d.totalRT / float64(d.interactions))
			row.EscalationRate = round2(float64(d.escalations) / float64(d.interactions) * 100)
		}
		breakdown = append(breakdown, row)
	}
	return breakdown
}

func topN(counts map[string]int, n int) map[string]int {
	type kv struct {
		k string
		v int
	}
	pairs := make([]kv, 0, len(counts))
	for k, v := range counts {
		pairs = append(pairs, kv{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].v != pairs[j].v {
			return pairs[i].v > pairs[j].v
		}
		return pairs[i].k < pairs[j].k
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	top := make(map[string]int, len(pairs))
	for _, p := range pairs {
		top[p.k] = p.v
	}
	return top
}

func peakHour(hourly map[int]int) *int {
	if len(hourly) == 0 {
		return nil
	}
	best, bestCount := 0, -1
	for h, c := range hourly {
		if c > bestCount || (c == bestCount && h < best) {
			best, bestCount = h, c
		}
	}
	return &best
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
