package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vthunder/mneme/internal/config"
)

func newSleepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sleep",
		Short: "Force a consolidation pass (pattern mining, decay, narrative chapter)",
		RunE:  runSleep,
	}
}

func runSleep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	org, err := newOrganism(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap organism: %w", err)
	}
	defer org.Close()

	report, err := org.consol.Run(time.Time{}, time.Now())
	if err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}

	fmt.Printf("patterns consolidated: %d\n", report.PatternsConsolidated)
	fmt.Printf("state updated: %v\n", report.StateUpdated)
	fmt.Printf("curves updated: %v\n", report.CurvesUpdated)
	fmt.Printf("episodes decayed: %d\n", report.EpisodesDecayed)
	fmt.Printf("self-knowledge facts written: %d\n", report.SelfKnowledgeWritten)
	if report.Chapter != nil {
		fmt.Printf("new narrative chapter: %s\n", report.Chapter.Title)
	}
	return nil
}
