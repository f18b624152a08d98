package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/millsync/internal/config"
	"github.com/roach88/millsync/internal/gateway"
	"github.com/roach88/millsync/internal/logging"
)

func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// logger writes to the command's stderr. --verbose forces debug level.
func (o *RootOptions) logger(cmd *cobra.Command, cfg *config.Config) (*logging.Logger, error) {
	level := cfg.LogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	l, err := logging.New(logging.Options{
		Level:  level,
		Format: cfg.Log.Format,
		Stderr: cmd.ErrOrStderr(),
		Dir:    cfg.Log.Dir,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	return l, nil
}

func newClient(cfg *config.Config, logger *slog.Logger) *gateway.Client {
	return gateway.NewClient(
		gateway.Endpoints{
			List:   cfg.API.ListURL,
			Create: cfg.API.CreateURL,
			Update: cfg.API.UpdateURL,
		},
		gateway.WithTimeout(cfg.Timeout()),
		gateway.WithUserAgent(cfg.API.UserAgent),
		gateway.WithLocation(cfg.TimeZone()),
		gateway.WithLogger(logger),
	)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
