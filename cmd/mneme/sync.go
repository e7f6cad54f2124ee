package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vthunder/mneme/internal/config"
	"github.com/vthunder/mneme/internal/senses"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Poll every configured perception source once and fold the results into memory",
		RunE:  runSync,
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	org, err := newOrganism(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap organism: %w", err)
	}
	defer org.Close()

	mgr := senses.NewSourceManager()
	for _, feedURL := range cfg.Sources.RSSFeeds {
		src, err := senses.NewRSSSource(feedURL, feedURL)
		if err != nil {
			fmt.Printf("skip %s: %v\n", feedURL, err)
			continue
		}
		mgr.Add(src)
	}

	events := mgr.CollectAll(context.Background())
	fmt.Printf("sync: %d source event(s)\n", len(events))
	for _, ev := range events {
		out, err := org.engine.Handle(context.Background(), ev)
		if err != nil {
			fmt.Printf("  %s: handle error: %v\n", ev.ChannelID, err)
			continue
		}
		if out.Silent || out.Text == "" {
			fmt.Printf("  %s: absorbed silently\n", ev.ChannelID)
		} else {
			fmt.Printf("  %s: %s\n", ev.ChannelID, out.Text)
		}
	}
	return nil
}
