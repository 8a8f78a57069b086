package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Lllllllleong/qrawareness/internal/analytics"
	"github.com/Lllllllleong/qrawareness/internal/bootstrap"
	"github.com/Lllllllleong/qrawareness/internal/config"
	"github.com/Lllllllleong/qrawareness/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	reportFile = "analytics-report.md"
	csvFile    = "cybersecurity_data_anonymous.csv"
)

// recordSource is the part of the remote backend the admin commands need.
type recordSource interface {
	ReadRecords(ctx context.Context) ([]models.Record, error)
	Reset(ctx context.Context) error
}

type opener func(ctx context.Context) (recordSource, func() error, error)

func main() {
	if err := newRootCmd(openRemote, time.Now).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openRemote(ctx context.Context) (recordSource, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	store, closeFn, err := bootstrap.OpenRemoteStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s backend: %w", cfg.Backend, err)
	}
	return store, closeFn, nil
}

func newRootCmd(open opener, now func() time.Time) *cobra.Command {
	var timeout time.Duration

	root := &cobra.Command{
		Use:           "awareness-admin",
		Short:         "Analytics and maintenance for the QR awareness campaign",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "deadline for remote calls")

	withStore := func(cmd *cobra.Command, fn func(ctx context.Context, src recordSource) error) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		src, closeFn, err := open(ctx)
		if err != nil {
			return err
		}
		defer closeFn()
		return fn(ctx, src)
	}

	root.AddCommand(newSummaryCmd(withStore, now))
	root.AddCommand(newReportCmd(withStore, now))
	root.AddCommand(newResetCmd(withStore))
	return root
}

type storeRunner func(cmd *cobra.Command, fn func(ctx context.Context, src recordSource) error) error

func newSummaryCmd(run storeRunner, now func() time.Time) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the headline metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, src recordSource) error {
				records, err := src.ReadRecords(ctx)
				if err != nil {
					return fmt.Errorf("failed to read records: %w", err)
				}
				printSummary(cmd.OutOrStdout(), analytics.Compute(records, now()))
				return nil
			})
		},
	}
}

func newReportCmd(run storeRunner, now func() time.Time) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the markdown report and the anonymized CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, src recordSource) error {
				records, err := src.ReadRecords(ctx)
				if err != nil {
					return fmt.Errorf("failed to read records: %w", err)
				}
				metrics := analytics.Compute(records, now())

				g, _ := errgroup.WithContext(ctx)
				reportPath := filepath.Join(outDir, reportFile)
				csvPath := filepath.Join(outDir, "data", csvFile)
				g.Go(func() error {
					return writeFile(reportPath, func(w io.Writer) error { return analytics.RenderReport(w, metrics) })
				})
				g.Go(func() error {
					return writeFile(csvPath, func(w io.Writer) error { return analytics.WriteAnonymizedCSV(w, records) })
				})
				if err := g.Wait(); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "report=%s csv=%s sessions=%d\n", reportPath, csvPath, metrics.TotalSessions)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "docs", "directory for the generated files")
	return cmd
}

func newResetCmd(run storeRunner) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "reset-sheet",
		Short: "Delete every tracked session and rewrite the header",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return errors.New("reset-sheet deletes all tracked data; pass --yes to confirm")
			}
			return run(cmd, func(ctx context.Context, src recordSource) error {
				if err := src.Reset(ctx); err != nil {
					return fmt.Errorf("failed to reset backend: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "backend reset; header rewritten")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm the reset")
	return cmd
}

func printSummary(w io.Writer, m analytics.Metrics) {
	_, _ = fmt.Fprintf(w, "Sessioni totali:   %d\n", m.TotalSessions)
	_, _ = fmt.Fprintf(w, "Completamenti:     %d\n", m.CompletedSessions)
	_, _ = fmt.Fprintf(w, "Conversion rate:   %.2f%%\n", m.ConversionRate)
	_, _ = fmt.Fprintf(w, "Attività 7gg:      %d\n", m.RecentActivity)
	_, _ = fmt.Fprintf(w, "Funnel:            %d -> %d -> %d -> %d\n",
		m.Funnel.PageOpens, m.Funnel.FormStarts, m.Funnel.Step2Completes, m.Funnel.FullCompletes)

	statuses := make([]string, 0, len(m.StatusBreakdown))
	for s := range m.StatusBreakdown {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		_, _ = fmt.Fprintf(w, "  %-12s %d\n", s, m.StatusBreakdown[s])
	}
}

func writeFile(path string, render func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return render(f)
}
