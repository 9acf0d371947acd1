// Package main provides the entry point for the geoalgebra geometry service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/geoalgebra/internal/app"
	"github.com/jobrunner/geoalgebra/internal/config"
	"github.com/jobrunner/geoalgebra/internal/domain"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "geoalgebra",
	Short: "geoalgebra - polygon algebra job service",
	Long: `geoalgebra runs polygon algebra jobs on GeoJSON feature collections.

Jobs are executed on a bounded worker pool and answered with the result in
WGS 84 and in the configured UTM zone.

Operations:
  - difference, intersect and union
  - buffer by a distance in meters
  - area filter by a minimum area in square meters
  - clip of several source layers by a mask

Operands are inline feature collections or ids of catalog layers loaded
from GeoJSON files and GeoPackages (local, AWS S3, Azure, HTTP storage).`,
	RunE: runServer,
}

var runCmd = &cobra.Command{
	Use:   "run <job.json>",
	Short: "Execute a single job and print the response",
	Long: `Execute a single job request read from a file ("-" for stdin) against
the configured layer catalog and print the JSON response to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runJob,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("geoalgebra %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
	rootCmd.PersistentFlags().String("storage-type", "local", "storage type (local, s3, azure, http)")
	rootCmd.PersistentFlags().String("storage-path", "./layers", "local layer directory")
	rootCmd.PersistentFlags().Int("utm-zone", 32, "UTM zone of the metric CRS")
	rootCmd.PersistentFlags().Bool("south", false, "use the southern hemisphere UTM zone")
	rootCmd.PersistentFlags().Int("workers", 2, "number of job workers")

	rootCmd.Flags().String("host", "0.0.0.0", "server host")
	rootCmd.Flags().Int("port", 8080, "server port")
	rootCmd.Flags().Bool("tls", false, "enable TLS")
	rootCmd.Flags().StringSlice("tls-domains", nil, "TLS domains")
	rootCmd.Flags().String("tls-email", "", "TLS email for Let's Encrypt")
	rootCmd.Flags().StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("storage.type", rootCmd.PersistentFlags().Lookup("storage-type"))
	_ = viper.BindPFlag("storage.local_path", rootCmd.PersistentFlags().Lookup("storage-path"))
	_ = viper.BindPFlag("projection.utm_zone", rootCmd.PersistentFlags().Lookup("utm-zone"))
	_ = viper.BindPFlag("projection.south", rootCmd.PersistentFlags().Lookup("south"))
	_ = viper.BindPFlag("engine.workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("server.host", rootCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", rootCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("tls.enabled", rootCmd.Flags().Lookup("tls"))
	_ = viper.BindPFlag("tls.domains", rootCmd.Flags().Lookup("tls-domains"))
	_ = viper.BindPFlag("tls.email", rootCmd.Flags().Lookup("tls-email"))
	_ = viper.BindPFlag("server.cors.allowed_origins", rootCmd.Flags().Lookup("cors"))

	rootCmd.AddCommand(runCmd, versionCmd)
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func runServer(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := app.NewLogger(cfg.Log, os.Stdout)

	logger.Info("starting geoalgebra",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage_type", cfg.Storage.Type,
		"utm_zone", cfg.Projection.UTMZone,
		"workers", cfg.Engine.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := application.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-serverErr:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// Logs go to stderr so stdout carries only the response.
	logger := app.NewLogger(cfg.Log, os.Stderr)

	req, err := readJobRequest(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg.Layers.Watch = false
	cfg.Layers.SyncInterval = 0
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	application.StartEngine(ctx)
	defer func() { _ = application.Shutdown(context.Background()) }()

	resp, err := application.Run(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("job %s failed: %s", resp.ID, resp.Error)
	}
	return nil
}

func readJobRequest(stdin io.Reader, path string) (*domain.JobRequest, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path) //#nosec G304 -- path is given by the operator
	}
	if err != nil {
		return nil, fmt.Errorf("reading job: %w", err)
	}

	var req domain.JobRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decoding job: %w", err)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return &req, nil
}
