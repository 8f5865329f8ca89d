package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Veraticus/food-classifier/internal/cli"
	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "foodclass",
		Short: "🥟 Mongolian food image classifier",
		Long: `foodclass: recognise Buuz, Khuushuur, Tsuivan and Olivier Salad in a photo.

Classify your own JPEG or PNG, try one of the example images, browse them
interactively, or serve predictions over HTTP.`,
		PersistentPreRunE: initConfig,
		SilenceErrors:     true,
		SilenceUsage:      true,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/foodclass/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	viper.SetDefault("database.path", "$HOME/.local/share/foodclass/foodclass.db")
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.max_upload_bytes", 10<<20)

	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(examplesCmd())
	rootCmd.AddCommand(fetchModelCmd())
	rootCmd.AddCommand(pickCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		if common.IsFatal(err) {
			fmt.Fprintln(os.Stderr, cli.RenderFatal(err))
		} else {
			fmt.Fprintln(os.Stderr, cli.RenderError(err))
		}
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		viper.AddConfigPath(fmt.Sprintf("%s/.config/foodclass", home))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// FOODCLASS_ARTIFACT_PATH overrides artifact.path, and so on.
	viper.SetEnvPrefix("FOODCLASS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := common.SetupLogger(viper.GetString("logging.level"), viper.GetString("logging.format")); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "foodclass %s\n", version)
		},
	}
}
