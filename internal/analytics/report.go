package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"text/template"

	"github.com/Lllllllleong/qrawareness/internal/models"
)

const anonymized = "ANONIMIZZATO"

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"pct":    func(part, total int) string { return fmt.Sprintf("%.1f%%", percent(part, total)) },
	"rate":   func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"rate2":  func(v float64) string { return fmt.Sprintf("%.2f%%", v) },
	"drop": func(prev, cur, total int) string {
		return fmt.Sprintf("%.1f%%", percent(prev-cur, total))
	},
	"sorted": Sorted,
	"top": func(dist map[string]int) *Count {
		c, ok := Top(dist)
		if !ok {
			return nil
		}
		return &c
	},
	"sum": func(dist map[string]int) int {
		n := 0
		for _, v := range dist {
			n += v
		}
		return n
	},
}).Parse(`# Cybersecurity Education - Analytics Report

**Ultimo aggiornamento:** {{.GeneratedAt.UTC.Format "2006-01-02 15:04:05"}} UTC

## Metriche Principali

| Metrica | Valore |
|---------|--------|
| **Sessioni Totali** | {{.TotalSessions}} |
| **Completamenti** | {{.CompletedSessions}} |
| **Conversion Rate** | {{rate2 .ConversionRate}} |
| **Attività Recente (7gg)** | {{.RecentActivity}} |

## Funnel di Conversione
{{with .Funnel}}
| Stage | Utenti | % del Totale | Drop-off |
|-------|--------|--------------|----------|
| **Aperture Pagina** | {{.PageOpens}} | {{pct .PageOpens .PageOpens}} | - |
| **Inizio Form** | {{.FormStarts}} | {{pct .FormStarts .PageOpens}} | {{drop .PageOpens .FormStarts .PageOpens}} |
| **Step 2 Completato** | {{.Step2Completes}} | {{pct .Step2Completes .PageOpens}} | {{drop .FormStarts .Step2Completes .PageOpens}} |
| **Completamento Totale** | {{.FullCompletes}} | {{pct .FullCompletes .PageOpens}} | {{drop .Step2Completes .FullCompletes .PageOpens}} |
{{end}}
## Efficacia Posizioni QR Code
{{with .RankedLocations 8}}
| Posizione | Conversion Rate | Raccomandazione |
|-----------|-----------------|-----------------|
{{range .}}| {{.Location}} | {{rate .Rate}} | {{.Rating}} |
{{end}}{{else}}
Nessuna posizione registrata.
{{end}}
## Analisi Demografica
{{with top .AgeDistribution}}
- **Fascia età più vulnerabile:** {{.Label}} ({{.N}} utenti){{end}}
{{- $total := sum .GenderDistribution}}{{range sorted .GenderDistribution}}
- **{{.Label}}:** {{.N}} utenti ({{pct .N $total}}){{end}}
{{- with top .EducationDistribution}}
- **Titolo studio più rappresentato:** {{.Label}}{{end}}
{{if .DailyTrend}}
## Trend Temporale

| Giorno | Aperture |
|--------|----------|
{{range sorted .DailyTrend}}| {{.Label}} | {{.N}} |
{{end}}{{end}}`))

// RenderReport writes the markdown analytics report.
func RenderReport(w io.Writer, m Metrics) error {
	if err := reportTemplate.Execute(w, m); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// WriteAnonymizedCSV writes every record in sheet column order with Session_ID and
// User_Agent masked.
func WriteAnonymizedCSV(w io.Writer, records []models.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, rec := range records {
		row := rec.Row()
		row[0] = anonymized
		row[12] = anonymized
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
