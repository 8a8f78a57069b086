package analytics

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/Lllllllleong/qrawareness/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func sampleRecords() []models.Record {
	return []models.Record{
		{
			SessionID: "a", OpenedAt: at(time.Hour), FormStartedAt: at(time.Hour), Step2At: at(time.Hour), CompletedAt: at(time.Hour),
			QRLocation: "Università", AgeRange: "18-25", Gender: "Donna", Education: "Laurea triennale",
			Status: models.StatusCompleted, Completed: true, UserAgent: "Mozilla/5.0 (iPhone)",
		},
		{
			SessionID: "b", OpenedAt: at(2 * time.Hour), FormStartedAt: at(2 * time.Hour), Step2At: at(2 * time.Hour),
			QRLocation: "Università", AgeRange: "18-25", Gender: "Uomo", Education: "Diploma superiore",
			Status: models.StatusAbandoned, UserAgent: "Mozilla/5.0 (Android)",
		},
		{
			SessionID: "c", OpenedAt: at(48 * time.Hour), FormStartedAt: at(48 * time.Hour),
			QRLocation: "Bar/Ristorante", Status: models.StatusAbandoned,
		},
		{
			SessionID: "d", OpenedAt: at(30 * 24 * time.Hour), Status: models.StatusInProgress,
		},
	}
}

func TestCompute(t *testing.T) {
	m := Compute(sampleRecords(), now)

	assert.Equal(t, 4, m.TotalSessions)
	assert.Equal(t, 1, m.CompletedSessions)
	assert.InDelta(t, 25.0, m.ConversionRate, 0.001)
	assert.Equal(t, map[string]int{"completato": 1, "abbandonato": 2, "in corso": 1}, m.StatusBreakdown)
	assert.Equal(t, Funnel{PageOpens: 4, FormStarts: 3, Step2Completes: 2, FullCompletes: 1}, m.Funnel)

	assert.Equal(t, map[string]int{"Università": 2, "Bar/Ristorante": 1}, m.QRLocations)
	assert.InDelta(t, 50.0, m.LocationConversion["Università"], 0.001)
	assert.InDelta(t, 0.0, m.LocationConversion["Bar/Ristorante"], 0.001)

	assert.Equal(t, map[string]int{"18-25": 2}, m.AgeDistribution)
	assert.Equal(t, map[string]int{"Donna": 1, "Uomo": 1}, m.GenderDistribution)
	assert.Equal(t, 3, m.RecentActivity)
	assert.Equal(t, map[string]int{"2025-03-10": 2, "2025-03-08": 1}, m.DailyTrend)
}

func TestComputeEmpty(t *testing.T) {
	m := Compute(nil, now)
	assert.Zero(t, m.TotalSessions)
	assert.Zero(t, m.ConversionRate)
	assert.Empty(t, m.RankedLocations(8))
}

func TestRankedLocations(t *testing.T) {
	m := Metrics{LocationConversion: map[string]float64{
		"a": 20, "b": 12, "c": 7, "d": 1, "e": 12,
	}}

	ranked := m.RankedLocations(4)
	require.Len(t, ranked, 4)
	assert.Equal(t, []string{"a", "b", "e", "c"}, []string{ranked[0].Location, ranked[1].Location, ranked[2].Location, ranked[3].Location})
	assert.Equal(t, "Ottima", ranked[0].Rating())
	assert.Equal(t, "Buona", ranked[1].Rating())
	assert.Equal(t, "Media", ranked[3].Rating())
	assert.Equal(t, "Bassa", LocationRate{Rate: 4.9}.Rating())
}

func TestTop(t *testing.T) {
	_, ok := Top(nil)
	assert.False(t, ok)

	c, ok := Top(map[string]int{"b": 2, "a": 2, "c": 1})
	require.True(t, ok)
	assert.Equal(t, Count{Label: "a", N: 2}, c)
}

func TestRenderReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderReport(&buf, Compute(sampleRecords(), now)))

	out := buf.String()
	assert.Contains(t, out, "**Ultimo aggiornamento:** 2025-03-10 12:00:00 UTC")
	assert.Contains(t, out, "| **Sessioni Totali** | 4 |")
	assert.Contains(t, out, "| **Conversion Rate** | 25.00% |")
	assert.Contains(t, out, "| **Inizio Form** | 3 | 75.0% | 25.0% |")
	assert.Contains(t, out, "| Università | 50.0% | Ottima |")
	assert.Contains(t, out, "| Bar/Ristorante | 0.0% | Bassa |")
	assert.Contains(t, out, "**Fascia età più vulnerabile:** 18-25 (2 utenti)")
	assert.Contains(t, out, "**Donna:** 1 utenti (50.0%)")
	assert.Contains(t, out, "| 2025-03-08 | 1 |")
}

func TestRenderReportWithoutData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderReport(&buf, Compute(nil, now)))
	assert.Contains(t, buf.String(), "Nessuna posizione registrata.")
	assert.NotContains(t, buf.String(), "Trend Temporale")
}

func TestWriteAnonymizedCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAnonymizedCSV(&buf, sampleRecords()[:2]))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.Columns, rows[0])
	for _, row := range rows[1:] {
		assert.Equal(t, "ANONIMIZZATO", row[0])
		assert.Equal(t, "ANONIMIZZATO", row[12])
	}
	assert.Equal(t, "Università", rows[1][5])
	assert.Equal(t, "Sì", rows[1][11])
	assert.Equal(t, "No", rows[2][11])
}
