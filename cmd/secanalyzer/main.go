// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/app"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/crypto"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/logger"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/repository/postgres"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "secanalyzer",
	Short: "Forensic security and audit core",
	Long:  `secanalyzer is the security backbone for forensic case management: encrypted secrets, session authority, tamper-evident audit ledger, threat classification, and continuous security monitoring.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the security core",
	Long:  `Start the security core: session sweeper, security monitor, retention scheduler, and the metrics endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database schema commands",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Create or update the audit schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return migrateUp()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("secanalyzer %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validation error: %w", err)
		}
		fmt.Println("Configuration is valid")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration (sensitive values masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		cfg.PrintMasked()
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen [PATH]",
	Short: "Generate a vault master key",
	Long: `Generate a 32-byte vault master key. With a PATH argument the key
is written to the file with owner-only permissions; an existing key
file is left untouched. Without arguments the key is printed as hex
to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			key, err := crypto.GenerateKey()
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			fmt.Println(key)
			return nil
		}

		path := args[0]
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("key file already exists: %s", path)
		}
		key, err := crypto.LoadOrCreateKey(path)
		if err != nil {
			return fmt.Errorf("write key file: %w", err)
		}
		crypto.Zeroize(key)
		fmt.Printf("Vault key written to %s\n", path)
		fmt.Fprintln(os.Stderr, "Back up this key. Secrets are unrecoverable without it.")
		return nil
	},
}

func serve() error {
	cfg, err := app.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}
	log.Info("secanalyzer started", "version", Version)

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()
	a.Shutdown(shutdownCtx)

	log.Info("secanalyzer stopped")
	return nil
}

func migrateUp() error {
	cfg, err := app.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.URL, postgres.Options{})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	store := postgres.NewAuditStore(db, logger.Nop())
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	fmt.Println("Audit schema is up to date")
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: /etc/secanalyzer/config.yaml or ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	migrateCmd.AddCommand(migrateUpCmd)
	rootCmd.AddCommand(migrateCmd)

	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.AddCommand(keygenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
