package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/econexus/parley/internal/models"
)

func newThreadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thread",
		Short: "Inspect negotiation threads",
	}

	cmd.AddCommand(newThreadListCmd())
	cmd.AddCommand(newThreadShowCmd())
	return cmd
}

func newThreadListCmd() *cobra.Command {
	var (
		configPath string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List negotiation threads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			gormDB, err := connectDB(cfg)
			if err != nil {
				return err
			}
			return runThreadList(cmd, gormDB, status)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (OPEN, NEGOTIATING, CLOSED)")
	return cmd
}

func runThreadList(cmd *cobra.Command, gormDB *gorm.DB, status string) error {
	out := cmd.OutOrStdout()

	q := gormDB.Order("updated_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var threads []models.NegotiationThread
	if err := q.Find(&threads).Error; err != nil {
		return fmt.Errorf("list threads: %w", err)
	}
	if len(threads) == 0 {
		fmt.Fprintln(out, "No threads found.")
		return nil
	}

	for _, thread := range threads {
		var request models.BuyerRequest
		product := "?"
		if err := gormDB.First(&request, "id = ?", thread.RequestID).Error; err == nil {
			product = fmt.Sprintf("%s x%d", request.ProductName, request.Quantity)
		}
		fmt.Fprintf(out, "%s  %-12s %s\n", thread.ID, thread.Status, product)
	}
	return nil
}

func newThreadShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <thread-id>",
		Short: "Show a thread and its message log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			gormDB, err := connectDB(cfg)
			if err != nil {
				return err
			}
			return runThreadShow(cmd, gormDB, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	return cmd
}

func runThreadShow(cmd *cobra.Command, gormDB *gorm.DB, threadID string) error {
	out := cmd.OutOrStdout()

	var thread models.NegotiationThread
	if err := gormDB.First(&thread, "id = ?", threadID).Error; err != nil {
		return fmt.Errorf("thread %s not found", threadID)
	}

	fmt.Fprintf(out, "Thread %s (%s)\n", thread.ID, thread.Status)
	fmt.Fprintf(out, "  request: %s\n  quote:   %s\n", thread.RequestID, thread.QuoteID)
	if thread.BuyerGuidelines != "" {
		fmt.Fprintf(out, "  buyer guidelines:  %s\n", thread.BuyerGuidelines)
	}
	if thread.SellerGuidelines != "" {
		fmt.Fprintf(out, "  seller guidelines: %s\n", thread.SellerGuidelines)
	}

	var messages []models.ChatMessage
	if err := gormDB.
		Where("thread_id = ?", thread.ID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	if len(messages) == 0 {
		fmt.Fprintln(out, "  (no messages)")
		return nil
	}
	fmt.Fprintln(out)
	for _, m := range messages {
		name := m.SenderName
		if name == "" {
			name = m.SenderType
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04"), name, m.Content)
	}

	var tx models.Transaction
	if err := gormDB.First(&tx, "thread_id = ?", thread.ID).Error; err == nil {
		fmt.Fprintf(out, "\nSettled at $%.2f, %d-day delivery (%s)\n", tx.Price, tx.DeliveryDays, tx.Reason)
	}
	return nil
}
