package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"anime-trivia-service/internal/config"
)

// NewGenerateCmd triggers daily set generation by hand, mirroring the
// scheduler's /admin/generate call.
func NewGenerateCmd(configPath *string) *cobra.Command {
	var (
		date   string
		report bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate daily question sets (today UTC unless --date is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := slog.New(slog.NewTextHandler(os.Stdout, nil))

			b, err := openBackends(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer b.Close()

			orch := buildOrchestrator(b, cfg, log)
			stats, err := orch.GenerateForDate(cmd.Context(), date)
			if err != nil {
				return err
			}
			fmt.Printf("date=%s categories=%d questions=%d skipped=%d errors=%d\n",
				stats.Date, stats.CategoriesProcessed, stats.QuestionsUsed,
				len(stats.Skipped), len(stats.Errors))
			for _, e := range stats.Errors {
				fmt.Println("error:", e)
			}

			if report {
				usage, err := orch.UsageReport(cmd.Context())
				if err != nil {
					return err
				}
				for _, u := range usage {
					fmt.Printf("category=%s used=%d unused=%d\n", u.Category, u.Used, u.Unused)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "explicit UTC date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&report, "report", false, "print per-category pool usage after generating")
	return cmd
}

// NewSweepCmd runs the retention sweep by hand.
func NewSweepCmd(configPath *string) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete daily question sets older than the retention cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := slog.New(slog.NewTextHandler(os.Stdout, nil))

			b, err := openBackends(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer b.Close()

			if days <= 0 {
				days = cfg.Quiz.RetentionDays
			}
			removed, err := buildOrchestrator(b, cfg, log).Sweep(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d question sets\n", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "retention window in days (default from config)")
	return cmd
}
