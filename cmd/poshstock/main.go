package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/poshstock/poshstock/config"
)

var version = "dev"

// cli carries state shared by the subcommands once the root has loaded it.
type cli struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	log     *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "poshstock",
		Short: "Inventory, pricing and barcode labels for resellers",
		Long: `poshstock tracks a reseller's inventory: items with purchase, list and
sold prices, barcode lookup for scanners, marketplace fee and break-even
calculation, and printable barcode labels sized to the label stock.`,
		PersistentPreRunE: c.initConfig,
		SilenceUsage:      true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default: ./poshstock.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("database-url", "", "database URL (sqlite:path or postgres://...)")

	// Bind flags to viper
	_ = c.v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = c.v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = c.v.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	// Add commands
	rootCmd.AddCommand(c.serveCmd())
	rootCmd.AddCommand(c.migrateCmd())
	rootCmd.AddCommand(c.priceCmd())
	rootCmd.AddCommand(c.labelCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func main() {
	// Set up signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (c *cli) initConfig(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		c.v.AddConfigPath(".")
		c.v.SetConfigName("poshstock")
		c.v.SetConfigType("yaml")
	}

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	cfg, err := config.Load(c.v)
	if err != nil {
		return err
	}
	c.cfg = cfg

	log, err := setupLogging(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	c.log = log
	slog.SetDefault(log)

	return nil
}

func setupLogging(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "console":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	return slog.New(handler), nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "poshstock %s\n", version)
		},
	}
}
