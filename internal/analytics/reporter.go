package analytics

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/book-tutor/backend/internal/storage/models"
	"github.com/book-tutor/backend/pkg/logger"
)

// StatsSource supplies aggregated interaction log rows.
type StatsSource interface {
	GetLogStats() ([]models.EventStats, error)
}

type Reporter struct {
	source StatsSource
}

// EventSummary is one event kind with its share of all turns.
type EventSummary struct {
	Event      string  `json:"event"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	AvgScore   float64 `json:"avg_score"`
	AvgLatency float64 `json:"avg_latency"`
}

type Report struct {
	TotalTurns      int            `json:"total_turns"`
	AnsweredTurns   int            `json:"answered_turns"`
	RefusedTurns    int            `json:"refused_turns"`
	AnswerRate      float64        `json:"answer_rate"`
	AvgSuccessScore float64        `json:"avg_success_score"`
	AvgLatency      float64        `json:"avg_latency"`
	Events          []EventSummary `json:"events"`
}

func NewReporter(source StatsSource) *Reporter {
	return &Reporter{source: source}
}

// answeredEvents are the outcomes where the student got real content back.
var answeredEvents = map[string]bool{
	models.EventSuccess:     true,
	models.EventFullSummary: true,
}

func (r *Reporter) BuildReport() (*Report, error) {
	stats, err := r.source.GetLogStats()
	if err != nil {
		return nil, fmt.Errorf("failed to load log stats: %w", err)
	}

	report := &Report{}

	var latencyWeighted float64
	for _, s := range stats {
		report.TotalTurns += s.Count
		if answeredEvents[s.Event] {
			report.AnsweredTurns += s.Count
		} else {
			report.RefusedTurns += s.Count
		}
		if s.Event == models.EventSuccess {
			report.AvgSuccessScore = s.AvgScore
		}
		latencyWeighted += s.AvgLatency * float64(s.Count)
	}

	if report.TotalTurns > 0 {
		report.AnswerRate = float64(report.AnsweredTurns) / float64(report.TotalTurns) * 100
		report.AvgLatency = latencyWeighted / float64(report.TotalTurns)
	}

	for _, s := range stats {
		pct := 0.0
		if report.TotalTurns > 0 {
			pct = float64(s.Count) / float64(report.TotalTurns) * 100
		}
		report.Events = append(report.Events, EventSummary{
			Event:      s.Event,
			Count:      s.Count,
			Percentage: pct,
			AvgScore:   s.AvgScore,
			AvgLatency: s.AvgLatency,
		})
	}

	sort.Slice(report.Events, func(i, j int) bool {
		if report.Events[i].Count != report.Events[j].Count {
			return report.Events[i].Count > report.Events[j].Count
		}
		return report.Events[i].Event < report.Events[j].Event
	})

	logger.Info("Interaction report built",
		zap.Int("total_turns", report.TotalTurns),
		zap.Float64("answer_rate", report.AnswerRate),
	)

	return report, nil
}

func (r *Reporter) FormatReport(report *Report) string {
	out := fmt.Sprintf(`
Interaction Report
==================

Total Turns: %d
Answered: %d (%.1f%%)
Refused: %d

Average Success Score: %.3f
Average Latency: %.2fs

Events:
`,
		report.TotalTurns,
		report.AnsweredTurns, report.AnswerRate,
		report.RefusedTurns,
		report.AvgSuccessScore,
		report.AvgLatency,
	)

	for _, e := range report.Events {
		out += fmt.Sprintf("- %s: %d (%.1f%%), avg score %.3f, avg latency %.2fs\n",
			e.Event, e.Count, e.Percentage, e.AvgScore, e.AvgLatency)
	}

	return out
}
