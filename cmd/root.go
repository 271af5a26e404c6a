/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/Gerardinho-server/GestionUsuarios/config"
	"github.com/Gerardinho-server/GestionUsuarios/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gestionusuarios",
	Short: "User registration, login and administration web application",
	Long: `GestionUsuarios serves a small web application with account
registration, session based login and an admin panel to manage users.

Configuration is read from the environment; set ENV=dev to load a .env file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	return logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}
