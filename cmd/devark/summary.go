package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DevArk-AI/devark/internal/config"
	"github.com/DevArk-AI/devark/internal/store"
	"github.com/DevArk-AI/devark/internal/summary"
)

var summaryCmd = &cobra.Command{
	Use:   "summary [daily|weekly|monthly]",
	Short: "Show an activity summary from local history",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	periodArg := "daily"
	if len(args) > 0 {
		periodArg = args[0]
	}
	period, err := summary.ParsePeriod(periodArg)
	if err != nil {
		return err
	}

	db, err := store.NewStore(store.Config{Path: config.DBPath(), MaxConns: config.Get().MaxConns})
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := summary.NewGenerator(db).Generate(cmd.Context(), period, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("%s summary (%s to %s)\n", period,
		s.From.Format("2006-01-02"), s.To.Format("2006-01-02"))
	fmt.Printf("  Sessions:        %d\n", s.SessionCount)
	fmt.Printf("  Prompts:         %d (%d scored)\n", s.PromptCount, s.ScoredPrompts)
	fmt.Printf("  Responses:       %d\n", s.ResponseCount)
	if s.ScoredPrompts > 0 {
		fmt.Printf("  Average score:   %.1f\n", s.AverageScore)
		fmt.Printf("    specificity %.1f  context %.1f  intent %.1f  actionability %.1f  constraints %.1f\n",
			s.Dimensions.Specificity, s.Dimensions.Context, s.Dimensions.Intent,
			s.Dimensions.Actionability, s.Dimensions.Constraints)
	}
	if len(s.Outcomes) > 0 {
		fmt.Printf("  Outcomes:       ")
		for outcome, count := range s.Outcomes {
			fmt.Printf(" %s=%d", outcome, count)
		}
		fmt.Println()
	}
	for i, p := range s.TopProjects {
		if i == 0 {
			fmt.Println("  Top projects:")
		}
		fmt.Printf("    %s (%d prompts)\n", p.Project, p.PromptCount)
	}
	return nil
}
