package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/teilomillet/chatrelay/config"
	"github.com/teilomillet/chatrelay/errors"
	"github.com/teilomillet/chatrelay/server"
	"github.com/teilomillet/chatrelay/server/provider"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var watchConfig bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay",
	RunE:  runServe,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		if _, err := config.LoadFile(configPath); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&watchConfig, "watch", true, "Reload the config file when it changes")
	rootCmd.AddCommand(serveCmd, validateCmd)
}

// loadConfig reads the config file. A missing file falls back to the
// defaults unless the path was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, bool, error) {
	cfg, err := config.LoadFile(configPath)
	if err == nil {
		return cfg, true, nil
	}
	if stderrors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.DefaultConfig(), false, nil
	}
	return nil, false, err
}

// newLogger builds the process logger from the logging section. The
// returned level can be adjusted at runtime.
func newLogger(cfg config.LoggingConfig) (*zap.Logger, zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, level, fmt.Errorf("parse log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	if cfg.Format == "text" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, level, fmt.Errorf("build logger: %w", err)
	}
	return logger, level, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	cfg, fromFile, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, level, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	errors.SetLogger(logger)

	var watcher config.Watcher = config.NewStaticWatcher(cfg)
	if fromFile && watchConfig {
		cw, err := config.NewConfigWatcher(configPath, logger)
		if err != nil {
			return err
		}
		watcher = cw
	}
	defer watcher.Close()

	srv, err := server.NewServerWithConfig(watcher, provider.New, logger)
	if err != nil {
		logger.Error("Server initialization failed", zap.Error(err))
		return err
	}
	srv.WithLogLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting chatrelay",
		zap.String("version", version),
		zap.Bool("config_file", fromFile),
		zap.Bool("watch", fromFile && watchConfig),
	)
	if err := srv.Start(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}
