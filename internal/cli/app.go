package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vibely/vibely/internal/config"
	"github.com/vibely/vibely/internal/daemon"
	"github.com/vibely/vibely/internal/logger"
)

// loadConfig reads the configuration named by the global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(cfgFile).WithEnvFile(envFile).Load()
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		if err := config.NewValidator().ValidateLogLevel(logLevel); err != nil {
			return nil, err
		}
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
}

// withDaemon builds the component container for one command, runs fn and
// releases the container. mutate, when set, adjusts the loaded config first.
func withDaemon(cmd *cobra.Command, mutate func(*config.Config), fn func(ctx context.Context, d *daemon.Daemon) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if mutate != nil {
		mutate(cfg)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return err
	}
	defer d.Stop()

	return fn(cmd.Context(), d)
}

// printJSON writes v as indented JSON to the command output
func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

// failed turns an unsuccessful result into a command error after it was printed
func failed(message string) error {
	return &ExitError{Code: 1, Err: fmt.Errorf("%s", message)}
}
