package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/econexus/parley/internal/models"
)

func newGuidelinesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guidelines",
		Short: "Manage negotiation guidelines",
	}

	cmd.AddCommand(newGuidelinesSetCmd())
	return cmd
}

func newGuidelinesSetCmd() *cobra.Command {
	var (
		configPath string
		side       string
		text       string
	)

	cmd := &cobra.Command{
		Use:   "set <thread-id>",
		Short: "Set one side's negotiation guidelines on a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			side = strings.ToLower(side)
			if side != "buyer" && side != "seller" {
				return fmt.Errorf("--side must be buyer or seller, got %q", side)
			}
			cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			gormDB, err := connectDB(cfg)
			if err != nil {
				return err
			}
			return runGuidelinesSet(cmd, gormDB, args[0], side, text)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	cmd.Flags().StringVar(&side, "side", "", "buyer or seller")
	cmd.Flags().StringVar(&text, "text", "", "guideline text")
	cmd.MarkFlagRequired("side")
	cmd.MarkFlagRequired("text")
	return cmd
}

func runGuidelinesSet(cmd *cobra.Command, gormDB *gorm.DB, threadID, side, text string) error {
	var thread models.NegotiationThread
	if err := gormDB.First(&thread, "id = ?", threadID).Error; err != nil {
		return fmt.Errorf("thread %s not found", threadID)
	}
	if thread.Status == models.ThreadClosed {
		return fmt.Errorf("thread %s is closed", threadID)
	}

	column := "buyer_guidelines"
	if side == "seller" {
		column = "seller_guidelines"
	}
	if err := gormDB.Model(&models.NegotiationThread{}).Where("id = ?", threadID).
		Update(column, text).Error; err != nil {
		return fmt.Errorf("update guidelines: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s guidelines on thread %s\n", side, threadID)
	return nil
}
