package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fastdesk/fastdesk/internal/config"
	"github.com/fastdesk/fastdesk/internal/store"
)

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or change configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, info := range config.ShowAll(cfg) {
			fmt.Printf("%-24s %-32s %v\n", info.Key, info.EnvVar, info.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config key in the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetKey(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Set %s = %s", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- seed ---

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo tickets and profiles for local development",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer st.Close()

		if err := seedDemoData(st); err != nil {
			return err
		}
		printSuccess("Demo data inserted")
		return nil
	},
}

func seedDemoData(st *store.Store) error {
	now := time.Now().UTC()
	userID := uuid.NewString()
	orgID := uuid.NewString()

	if err := st.SaveProfile(store.Profile{
		ID:          userID,
		DisplayName: "Dana Calloway",
		Email:       "dana@example.com",
		CreatedAt:   now.Add(-90 * 24 * time.Hour),
	}); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}

	tickets := []struct {
		title, body string
		age         time.Duration
		replies     []struct{ role, name, body string }
	}{
		{
			title: "Cannot log in after password reset",
			body:  "I reset my password yesterday and now I cannot log in at all. The page just reloads.",
			age:   72 * time.Hour,
			replies: []struct{ role, name, body string }{
				{"worker", "Sam Reyes", "Sorry about that. Could you try clearing your browser cache and logging in again?"},
				{"customer", "Dana Calloway", "Tried that, still the same."},
			},
		},
		{
			title: "Invoice shows the wrong plan",
			body:  "Our latest invoice lists the Pro plan but we downgraded to Starter last month.",
			age:   24 * time.Hour,
		},
	}

	for _, t := range tickets {
		ticketID := uuid.NewString()
		createdAt := now.Add(-t.age)
		if err := st.SaveTicket(store.Ticket{
			ID:            ticketID,
			OrgID:         orgID,
			RequesterID:   userID,
			RequesterName: "Dana Calloway",
			Title:         t.title,
			Body:          t.body,
			CreatedAt:     createdAt,
		}); err != nil {
			return fmt.Errorf("saving ticket: %w", err)
		}
		for i, reply := range t.replies {
			if err := st.SaveTicketMessage(store.TicketMessage{
				ID:         uuid.NewString(),
				TicketID:   ticketID,
				SenderID:   userID,
				SenderName: reply.name,
				Role:       reply.role,
				Body:       reply.body,
				CreatedAt:  createdAt.Add(time.Duration(i+1) * time.Hour),
			}); err != nil {
				return fmt.Errorf("saving ticket message: %w", err)
			}
		}
	}

	fmt.Printf("user_id: %s\norg_id:  %s\n", userID, orgID)
	return nil
}
