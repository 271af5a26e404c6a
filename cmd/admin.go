/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/Gerardinho-server/GestionUsuarios/config"
	"github.com/Gerardinho-server/GestionUsuarios/internal/db"
	"github.com/Gerardinho-server/GestionUsuarios/internal/server"
	"github.com/Gerardinho-server/GestionUsuarios/internal/services"
	"github.com/Gerardinho-server/GestionUsuarios/internal/store"
	"github.com/spf13/cobra"
)

var adminInput services.RegisterInput

// adminCmd groups account administration tasks run outside the web panel.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator, or promote an existing account",
	Long: `Creates an active administrator account. When the username is
already taken the account is promoted to admin and its password is reset.

	gestionusuarios admin create --username root --email root@example.com --password secret`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)
		ctx := cmd.Context()

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		sessions, err := server.OpenSessionStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer sessions.Close()

		users := services.NewUserService(store.NewUserRepository(dbConn), sessions, nil, logger)
		user, err := users.EnsureAdmin(ctx, adminInput)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "admin %q ready (id %d)\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)

	adminCreateCmd.Flags().StringVar(&adminInput.Username, "username", "", "admin username")
	adminCreateCmd.Flags().StringVar(&adminInput.Email, "email", "", "admin email address")
	adminCreateCmd.Flags().StringVar(&adminInput.Password, "password", "", "admin password")
	_ = adminCreateCmd.MarkFlagRequired("username")
	_ = adminCreateCmd.MarkFlagRequired("email")
	_ = adminCreateCmd.MarkFlagRequired("password")
}
