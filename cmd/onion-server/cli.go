package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/Suhaibinator/SOnion/pkg/config"
)

// CLI is the command line interface of onion-server.
type CLI struct {
	Serve   Serve            `kong:"cmd,help='Start the HTTP server.'"`
	Version kong.VersionFlag `kong:"help='Output version and exit.'"`
}

// runContext is bound to every command's Run method.
type runContext struct {
	Ctx context.Context
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("onion-server"),
		kong.Description("Serve a SOnion middleware application."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Vars{"version": version},
	}, options...)

	parser, err := kong.New(cli, options...)
	if err != nil {
		return nil, fmt.Errorf("failed creating the Kong parser: %w", err)
	}
	return parser, nil
}

// Serve starts the web server.
type Serve struct {
	Config   string `help:"Path to the YAML configuration file." placeholder:"PATH"`
	Addr     string `help:"[host]:port to listen on. Overrides server.addr."`
	Silent   bool   `help:"Suppress the default error logging."`
	LogLevel string `help:"Logging level: debug, info, warn or error. Overrides log.level." placeholder:"LEVEL"`
}

// loadConfig loads the configuration file and applies the flags on top of it.
func (s *Serve) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(s.Config)
	if err != nil {
		return nil, err
	}

	if s.Addr != "" {
		cfg.Server.Addr = s.Addr
	}
	if s.Silent {
		cfg.App.Silent = true
	}
	if s.LogLevel != "" {
		cfg.Log.Level = s.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// Run the serve command.
func (s *Serve) Run(rc *runContext) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed creating the logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	srv, a, err := newServer(cfg, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Server.Addr, err)
	}

	logger.Info("Server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("h2c", cfg.Server.H2C),
		zap.Bool("metrics", cfg.Metrics.Enabled),
		zap.String("version", version),
	)

	srvDone := make(chan error, 1)
	go func() {
		srvDone <- srv.Serve(ln)
	}()

	select {
	case <-rc.Ctx.Done():
		logger.Info("Shutdown signal received")
	case srvErr := <-srvDone:
		if srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
			return fmt.Errorf("web server error: %w", srvErr)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// The app answers 503 from here on while in-flight requests drain.
	if err := a.Shutdown(ctx); err != nil {
		logger.Warn("Application shutdown timed out", zap.Error(err))
	}
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed shutting down web server: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}
