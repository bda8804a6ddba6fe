package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/econexus/parley/internal/auth"
	"github.com/econexus/parley/internal/ids"
	"github.com/econexus/parley/internal/models"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
	}

	cmd.AddCommand(newUserCreateCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var (
		configPath string
		name       string
		email      string
		role       string
		password   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a marketplace user",
		Long:  "Creates a buyer or seller account directly in the database. Prompts for the password when --password is not given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(cmd, configPath, cmd.Flags().Changed("config"), name, email, role, password)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&role, "role", "", "BUYER or SELLER")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("role")
	return cmd
}

func runUserCreate(cmd *cobra.Command, configPath string, explicit bool, name, email, role, password string) error {
	out := cmd.OutOrStdout()

	role = strings.ToUpper(role)
	if role != models.RoleBuyer && role != models.RoleSeller {
		return fmt.Errorf("role must be BUYER or SELLER, got %q", role)
	}

	if password == "" {
		fmt.Fprint(out, "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	}
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := connectDB(cfg)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user := models.User{
		ID:           ids.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := gormDB.Create(&user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(out, "Created %s %s (%s) with ID %s\n", strings.ToLower(role), name, email, user.ID)
	return nil
}
