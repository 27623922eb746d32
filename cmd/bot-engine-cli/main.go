// Command bot-engine-cli is the operator admin tool for the bot lifecycle
// engine: inspecting a bot's current state, applying an event by hand, and
// dispatching a replay marker to a bot's webhook subscriptions.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meetbot/lifecycle-engine/internal/domain/bot"
	"github.com/meetbot/lifecycle-engine/internal/domain/engine"
	"github.com/meetbot/lifecycle-engine/internal/domain/webhook"
	"github.com/meetbot/lifecycle-engine/internal/infrastructure/config"
	"github.com/meetbot/lifecycle-engine/internal/infrastructure/eventbus"
	"github.com/meetbot/lifecycle-engine/internal/infrastructure/logger"
	"github.com/meetbot/lifecycle-engine/internal/infrastructure/persistence"
)

const cliName = "bot-engine-cli"

func main() {
	rootCmd := &cobra.Command{
		Use:   cliName,
		Short: "Operator tool for the bot session lifecycle engine",
	}

	rootCmd.AddCommand(inspectBotCmd())
	rootCmd.AddCommand(applyEventCmd())
	rootCmd.AddCommand(replayFailedWebhooksCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newStore() (*persistence.BotStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	db, err := persistence.NewDBConnection(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	return persistence.NewBotStore(db), nil
}

func inspectBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect-bot <bot-id>",
		Short: "Print a bot's current state, version, and last event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}
			ctx := context.Background()
			snap, err := store.LoadBotForUpdate(ctx, args[0])
			if err != nil {
				return fmt.Errorf("load bot: %w", err)
			}
			last, err := store.LastEvent(ctx, args[0])
			if err != nil {
				return fmt.Errorf("load last event: %w", err)
			}

			out := map[string]any{
				"id":      snap.ID,
				"state":   snap.State.APICode(),
				"version": snap.Version,
			}
			if last != nil {
				out["last_event"] = map[string]any{
					"kind":       last.Kind.APICode(),
					"old_state":  last.OldState.APICode(),
					"new_state":  last.NewState.APICode(),
					"created_at": last.CreatedAt,
				}
			}
			enc, _ := json.MarshalIndent(out, "", "  ")
			fmt.Println(string(enc))
			return nil
		},
	}
}

func applyEventCmd() *cobra.Command {
	var subkind int
	var metadataJSON string

	cmd := &cobra.Command{
		Use:   "apply-event <bot-id> <event-kind>",
		Short: "Manually apply an event to a bot, bypassing the HTTP/gRPC surfaces",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}
			log, err := logger.NewLogger(logger.Config{Level: "info", Format: "console", OutputPath: "stdout"})
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer log.Sync()

			bus := eventbus.NewInMemoryBus(log, 16)
			defer bus.Close()
			busAdapter := eventbus.NewBotBusAdapter(bus)

			eng := engine.New(store, nil, busAdapter, log)

			var kind int
			if _, err := fmt.Sscanf(args[1], "%d", &kind); err != nil {
				return fmt.Errorf("event-kind must be numeric: %w", err)
			}

			var sk *bot.Subkind
			if cmd.Flags().Changed("subkind") {
				v := bot.Subkind(subkind)
				sk = &v
			}

			var metadata map[string]any
			if metadataJSON != "" {
				if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
					return fmt.Errorf("invalid --metadata JSON: %w", err)
				}
			}

			ev, err := eng.Apply(context.Background(), args[0], bot.EventKind(kind), sk, metadata)
			if err != nil {
				return fmt.Errorf("apply: %w", err)
			}
			fmt.Printf("applied: %s -> %s (event %s)\n", ev.OldState.APICode(), ev.NewState.APICode(), ev.ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&subkind, "subkind", 0, "numeric event subkind")
	cmd.Flags().StringVar(&metadataJSON, "metadata", "", "event metadata as a JSON object")
	return cmd
}

func replayFailedWebhooksCmd() *cobra.Command {
	var trigger int
	var botID string

	cmd := &cobra.Command{
		Use:   "replay-webhooks",
		Short: "Dispatch a {\"replay\": true} payload to a bot's subscriptions for a trigger (no HTTP request is sent; earlier failed deliveries are not re-sent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore()
			if err != nil {
				return err
			}
			log, err := logger.NewLogger(logger.Config{Level: "info", Format: "console", OutputPath: "stdout"})
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer log.Sync()

			sender := noopSender{}
			dispatcher := webhook.NewDispatcher(store, sender, log)
			if err := dispatcher.Dispatch(context.Background(), webhook.TriggerType(trigger), botID, map[string]any{"replay": true}); err != nil {
				return fmt.Errorf("replay: %w", err)
			}
			fmt.Println("replay dispatched")
			return nil
		},
	}
	cmd.Flags().IntVar(&trigger, "trigger", int(webhook.TriggerBotStateChange), "numeric trigger type to replay")
	cmd.Flags().StringVar(&botID, "bot-id", "", "bot id to replay deliveries for")
	cmd.MarkFlagRequired("bot-id")
	return cmd
}

// noopSender is the Sender for the CLI's replay command: it sends nothing
// and reports status 200, so every attempt it makes is recorded as a
// success.
type noopSender struct{}

func (noopSender) Send(ctx context.Context, url string, body []byte, signature string) (int, string, error) {
	return 200, "", nil
}
