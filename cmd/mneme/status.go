package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vthunder/mneme/internal/config"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Dump the organism's current projected state, token budget, and memory size",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	org, err := newOrganism(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap organism: %w", err)
	}
	defer org.Close()

	proj := org.engine.State.Project()
	fmt.Println("persona:")
	fmt.Printf("  affect: valence=%.2f arousal=%.2f\n", proj.Affect.Valence, proj.Affect.Arousal)
	fmt.Printf("  energy: %.2f  stress: %.2f  mood bias: %.2f\n", proj.EnergyLevel, proj.StressLevel, proj.MoodBias)
	fmt.Printf("  attachment style: %s\n", proj.AttachmentStyle)
	fmt.Printf("  dominant values: %v\n", proj.DominantValues)
	fmt.Printf("  curiosity topics: %v\n", proj.CuriosityTopics)

	budgetStatus, err := org.ledger.Check()
	if err != nil {
		fmt.Printf("token budget: error: %v\n", err)
	} else {
		fmt.Println("token budget:")
		fmt.Printf("  today: %d/%d  month: %d/%d  downgrade: %v  exhausted: %v\n",
			budgetStatus.TodaySpent, budgetStatus.DailyLimit,
			budgetStatus.MonthSpent, budgetStatus.MonthlyLimit,
			budgetStatus.ShouldDowngrade, budgetStatus.Exhausted)
	}

	stats, err := org.store.Stats()
	if err != nil {
		fmt.Printf("memory: error: %v\n", err)
	} else {
		fmt.Println("memory:")
		for table, count := range stats {
			fmt.Printf("  %s: %d\n", table, count)
		}
	}
	return nil
}
