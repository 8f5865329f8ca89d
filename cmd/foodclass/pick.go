package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/config"
	"github.com/Veraticus/food-classifier/internal/imagesource"
	"github.com/Veraticus/food-classifier/internal/tui"
	"github.com/Veraticus/food-classifier/internal/tui/themes"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func pickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Browse example images and uploads interactively",
		Long: `Open an interactive picker. Choose an example image or type the path of
a JPEG or PNG file and see the prediction with every label's score.

Logs are discarded while the picker owns the terminal unless --log-file is set.`,
		RunE: runPick,
	}

	cmd.Flags().String("theme", "default", "color theme (default, catppuccin-mocha)")
	cmd.Flags().String("log-file", "", "write logs to this file while the picker runs")
	_ = viper.BindPFlag("tui.theme", cmd.Flags().Lookup("theme"))

	return cmd
}

func runPick(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := loadApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	logger, closeLog, err := pickerLogger(cmd)
	if err != nil {
		return err
	}
	defer closeLog()
	previous := slog.Default()
	slog.SetDefault(logger)
	defer slog.SetDefault(previous)

	return tui.Run(ctx,
		tui.WithSelector(imagesource.NewSlot(a.resolver)),
		tui.WithPredictor(a.predictor),
		tui.WithExamples(a.catalog.Names()),
		tui.WithHistory(a.history),
		tui.WithTheme(themes.GetTheme(viper.GetString("tui.theme"))),
		tui.WithLogger(logger),
	)
}

// pickerLogger returns a logger that never writes to the terminal.
func pickerLogger(cmd *cobra.Command) (*slog.Logger, func(), error) {
	level, err := common.ParseLevel(viper.GetString("logging.level"))
	if err != nil {
		return nil, nil, err
	}

	path, _ := cmd.Flags().GetString("log-file")
	if path == "" {
		logger, err := common.NewLogger(io.Discard, level, "json")
		return logger, func() {}, err
	}

	f, err := os.OpenFile(config.ExpandPath(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger, err := common.NewLogger(f, level, "json")
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return logger, func() { _ = f.Close() }, nil
}
