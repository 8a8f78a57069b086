package analytics

import (
	"sort"
	"time"

	"github.com/Lllllllleong/qrawareness/internal/models"
)

const recentWindow = 7 * 24 * time.Hour

// Funnel counts how many sessions reached each step.
type Funnel struct {
	PageOpens      int
	FormStarts     int
	Step2Completes int
	FullCompletes  int
}

// Metrics summarises a set of session records.
type Metrics struct {
	GeneratedAt           time.Time
	TotalSessions         int
	CompletedSessions     int
	ConversionRate        float64
	StatusBreakdown       map[string]int
	Funnel                Funnel
	QRLocations           map[string]int
	LocationConversion    map[string]float64
	AgeDistribution       map[string]int
	GenderDistribution    map[string]int
	EducationDistribution map[string]int
	RecentActivity        int
	DailyTrend            map[string]int
}

// Compute derives every metric from records. now anchors the recent-activity window.
func Compute(records []models.Record, now time.Time) Metrics {
	m := Metrics{
		GeneratedAt:           now,
		StatusBreakdown:       map[string]int{},
		QRLocations:           map[string]int{},
		LocationConversion:    map[string]float64{},
		AgeDistribution:       map[string]int{},
		GenderDistribution:    map[string]int{},
		EducationDistribution: map[string]int{},
		DailyTrend:            map[string]int{},
	}
	completedByLocation := map[string]int{}
	since := now.Add(-recentWindow)

	for _, rec := range records {
		m.TotalSessions++
		m.Funnel.PageOpens++
		if rec.Status != "" {
			m.StatusBreakdown[string(rec.Status)]++
		}
		if rec.FormStartedAt != nil {
			m.Funnel.FormStarts++
		}
		if rec.Step2At != nil {
			m.Funnel.Step2Completes++
		}
		if rec.Completed {
			m.CompletedSessions++
			m.Funnel.FullCompletes++
		}

		if rec.QRLocation != "" {
			m.QRLocations[rec.QRLocation]++
			if rec.Completed {
				completedByLocation[rec.QRLocation]++
			}
		}
		countNonEmpty(m.AgeDistribution, rec.AgeRange)
		countNonEmpty(m.GenderDistribution, rec.Gender)
		countNonEmpty(m.EducationDistribution, rec.Education)

		if rec.OpenedAt != nil && !rec.OpenedAt.Before(since) {
			m.RecentActivity++
			m.DailyTrend[rec.OpenedAt.Format("2006-01-02")]++
		}
	}

	if m.TotalSessions > 0 {
		m.ConversionRate = percent(m.CompletedSessions, m.TotalSessions)
	}
	for loc, total := range m.QRLocations {
		m.LocationConversion[loc] = percent(completedByLocation[loc], total)
	}
	return m
}

// LocationRate is one QR placement with its conversion rate.
type LocationRate struct {
	Location string
	Rate     float64
}

// Rating grades a placement by how often it led to a completed questionnaire.
func (l LocationRate) Rating() string {
	switch {
	case l.Rate >= 15:
		return "Ottima"
	case l.Rate >= 10:
		return "Buona"
	case l.Rate >= 5:
		return "Media"
	default:
		return "Bassa"
	}
}

// RankedLocations returns placements by descending conversion rate, at most limit.
func (m Metrics) RankedLocations(limit int) []LocationRate {
	out := make([]LocationRate, 0, len(m.LocationConversion))
	for loc, rate := range m.LocationConversion {
		out = append(out, LocationRate{Location: loc, Rate: rate})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rate != out[j].Rate {
			return out[i].Rate > out[j].Rate
		}
		return out[i].Location < out[j].Location
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Count is a label with its number of sessions.
type Count struct {
	Label string
	N     int
}

// Sorted lists a distribution by label.
func Sorted(dist map[string]int) []Count {
	out := make([]Count, 0, len(dist))
	for k, v := range dist {
		out = append(out, Count{Label: k, N: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Top returns the most frequent label; ties go to the alphabetically first one.
func Top(dist map[string]int) (Count, bool) {
	var best Count
	found := false
	for _, c := range Sorted(dist) {
		if !found || c.N > best.N {
			best, found = c, true
		}
	}
	return best, found
}

func countNonEmpty(dist map[string]int, v string) {
	if v != "" {
		dist[v]++
	}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
