package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/econexus/parley/internal/config"
	"github.com/econexus/parley/internal/engine"
	"github.com/econexus/parley/internal/llm"
	"github.com/econexus/parley/internal/notify"
)

func newNegotiateCmd() *cobra.Command {
	var (
		configPath string
		rounds     int
	)

	cmd := &cobra.Command{
		Use:   "negotiate <thread-id>",
		Short: "Run agent-to-agent negotiation rounds on a thread",
		Long:  "Runs up to --rounds negotiation rounds, stopping early on settlement or when the round limit is reached.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			gormDB, err := connectDB(cfg)
			if err != nil {
				return err
			}
			return runNegotiate(cmd, cfg, gormDB, args[0], rounds)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "max rounds this invocation (default: remaining rounds)")
	return cmd
}

func runNegotiate(cmd *cobra.Command, cfg *config.Config, gormDB *gorm.DB, threadID string, rounds int) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	apiKey, err := llmAPIKey(cfg.LLM.Provider)
	if err != nil {
		return err
	}
	generator, err := llm.FromConfig(ctx, cfg.LLM, apiKey)
	if err != nil {
		return err
	}
	notifier, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Deps{
		DB:        gormDB,
		Generator: generator,
		Notifier:  notifier,
		Timeout:   time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		MaxRounds: cfg.Negotiation.MaxRounds,
		TurnDelay: time.Duration(cfg.Negotiation.TurnDelayMS) * time.Millisecond,
		Out:       out,
	})

	if rounds <= 0 || rounds > cfg.Negotiation.MaxRounds {
		rounds = cfg.Negotiation.MaxRounds
	}

	for i := 0; i < rounds; i++ {
		res, err := eng.RunRound(ctx, threadID)
		if err != nil {
			if errors.Is(err, engine.ErrMaxRounds) && i > 0 {
				break
			}
			return err
		}

		fmt.Fprintf(out, "\n--- Round %d ---\n", res.Round)
		fmt.Fprintf(out, "%s: %s\n", res.BuyerMessage.SenderName, res.BuyerMessage.Content)
		fmt.Fprintf(out, "%s: %s\n", res.SellerMessage.SenderName, res.SellerMessage.Content)

		if res.Settlement.Settled {
			if res.BuyerConfirmation != nil {
				fmt.Fprintf(out, "%s: %s\n", res.BuyerConfirmation.SenderName, res.BuyerConfirmation.Content)
			}
			if res.SellerConfirmation != nil {
				fmt.Fprintf(out, "%s: %s\n", res.SellerConfirmation.SenderName, res.SellerConfirmation.Content)
			}
			fmt.Fprintf(out, "\nDeal reached at $%.2f (%s)\n", res.Settlement.FinalPrice, res.Settlement.Reason)
			return nil
		}
		if !res.ShouldContinue {
			break
		}
	}

	fmt.Fprintln(out, "\nNo deal reached.")
	return nil
}
