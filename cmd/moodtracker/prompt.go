package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/moodtracker/internal/database"
	"github.com/dukerupert/moodtracker/internal/phone"
	"github.com/dukerupert/moodtracker/internal/prompt"
	"github.com/dukerupert/moodtracker/internal/store"
)

func newTestPromptCmd() *cobra.Command {
	var number string
	cmd := &cobra.Command{
		Use:   "test-prompt",
		Short: "Send the daily prompt to one subscribed phone now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			canonical, err := phone.Normalize(number, cfg.Region)
			if err != nil {
				return fmt.Errorf("%q: %w", number, err)
			}

			db, err := database.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			sender, _ := newSender(cfg, logger)
			sched := prompt.NewScheduler(store.NewSubscriberStore(db), store.NewIdentityStore(db), sender,
				cfg.Prompt.Hour, cfg.Prompt.Minute, cfg.Location, logger.With("component", "prompt"))

			if err := sched.SendTest(cmd.Context(), canonical); err != nil {
				return fmt.Errorf("test prompt to %s: %w", canonical, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test prompt sent to %s\n", canonical)
			return nil
		},
	}
	cmd.Flags().StringVar(&number, "phone", "", "Phone number to prompt, E.164 or local to DEFAULT_REGION")
	cmd.MarkFlagRequired("phone")
	return cmd
}
