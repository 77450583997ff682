package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	findly "github.com/findly-app/findly/sdk/golang"
	"github.com/spf13/cobra"
)

var (
	loginPassword string
	loginEmail    string
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	loginCmd.Flags().StringVar(&loginPassword, "password", "", "password (prompted when omitted)")
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
}

var loginCmd = &cobra.Command{
	Use:   "login <user-id>",
	Short: "Log in and persist the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]

		password := loginPassword
		if password == "" {
			fmt.Print("Password: ")
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("cannot read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if password == "" {
			return fmt.Errorf("password is required")
		}

		client := getAnonymousClient()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		resp, err := client.Auth.Login(ctx, &findly.LoginRequest{
			UserID:   userID,
			Password: password,
			Email:    loginEmail,
		})
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		if resp.Token == "" {
			return fmt.Errorf("login failed: %s", resp.Message)
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.Auth.UserID = resp.UserID
		cfg.Auth.Token = resp.Token
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}

		fmt.Printf("Logged in as %s\n", resp.UserID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the persisted session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.Auth = ConfigAuth{}
		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the logged-in user id",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.Auth.UserID == "" {
			fmt.Println("Not logged in.")
			return nil
		}
		fmt.Println(cfg.Auth.UserID)
		return nil
	},
}
