package main

import (
	"log/slog"

	"github.com/Veraticus/food-classifier/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Long: `Start an HTTP server exposing the classifier.

Endpoints:
  GET  /health                   liveness check
  GET  /examples                 example images with descriptions
  POST /predict/image            multipart upload, form field "image"
  POST /predict/example/{name}   classify a named example image`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "address to listen on")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := loadApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	opts := []server.Option{
		server.WithLogger(slog.Default()),
		server.WithMaxUploadBytes(viper.GetInt64("server.max_upload_bytes")),
	}
	if a.history != nil {
		opts = append(opts, server.WithHistory(a.history))
	}

	srv, err := server.New(a.predictor, a.resolver, a.catalog, opts...)
	if err != nil {
		return err
	}

	slog.Info("Starting server", "addr", viper.GetString("server.addr"), "model", a.runtime.ArtifactPath)
	return srv.ListenAndServe(ctx, viper.GetString("server.addr"))
}
