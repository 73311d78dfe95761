package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/vibely/vibely/internal/config"
	"github.com/vibely/vibely/internal/logger"
	"github.com/vibely/vibely/internal/observability"
	"github.com/vibely/vibely/internal/tracing"
	"github.com/vibely/vibely/pkg/assistant"
	"github.com/vibely/vibely/pkg/deploy"
	"github.com/vibely/vibely/pkg/gateway"
	"github.com/vibely/vibely/pkg/license"
	"github.com/vibely/vibely/pkg/sandbox"
	"github.com/vibely/vibely/pkg/session"
	"resty.dev/v3"
)

// Daemon owns every component built from one immutable config. The CLI
// uses it directly for one-shot operations; serve also starts the gateway.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	// Core modules
	sessions   *session.Store
	runner     *sandbox.HostRunner
	verifier   *license.Verifier
	dispatcher *deploy.Dispatcher
	hooks      *deploy.HookTrigger
	assistant  *assistant.Assistant
	httpClient *resty.Client

	// Services
	gatewayServer *gateway.Server
	lifecycle     *LifecycleManager

	startTime time.Time
	running   bool
	mu        sync.RWMutex
	stopOnce  sync.Once

	tracingEnabled bool
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	observability.EnsureRegistered()
	tracingEnabled := cfg.Tracing.Enabled
	if tracingEnabled {
		err := tracing.InitOpenTelemetry(tracing.Config{
			ServiceName:    "vibely",
			ServiceVersion: config.Version,
			ProjectsRoot:   cfg.ProjectsRoot,
			SampleRatio:    cfg.Tracing.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
			tracingEnabled = false
		}
	}

	d := &Daemon{
		config:         cfg,
		logger:         log,
		tracingEnabled: tracingEnabled,
	}

	if err := d.initializeCoreModules(); err != nil {
		d.shutdownTracing()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	if err := d.initializeServices(); err != nil {
		d.shutdownTracing()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return d, nil
}

// initializeCoreModules builds the components in dependency order
func (d *Daemon) initializeCoreModules() error {
	cfg := d.config

	if cfg.Logging.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to initialize audit log file, auditing to the main log")
			observability.SetAuditLogger(d.logger.With().Str("component", "audit").Logger())
		}
	} else {
		observability.SetAuditLogger(d.logger.With().Str("component", "audit").Logger())
	}

	sessions, err := session.NewStore(cfg.ProjectsRoot)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	d.sessions = sessions

	runner, err := sandbox.NewHostRunner(sandbox.Config{
		Shell:   cfg.Sandbox.Shell,
		Timeout: cfg.Sandbox.CommandTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create command runner: %w", err)
	}
	d.runner = runner

	d.httpClient = deploy.NewHTTPClient(cfg.HTTP.Timeout)

	d.verifier = license.NewVerifier(license.Config{
		VerifyURL:        cfg.License.VerifyURL,
		ProductPermalink: cfg.License.ProductPermalink,
		Timeout:          cfg.HTTP.Timeout,
	})

	var gate deploy.LicenseGate
	if cfg.License.Enforce {
		gate = d.verifier
	}

	dispatcher, err := deploy.NewDispatcher(deploy.DispatcherOptions{
		Sessions: sessions,
		Adapters: []deploy.Adapter{
			deploy.NewNetlifyAdapter(deploy.NetlifyConfig{
				Token:  cfg.Netlify.Token,
				APIURL: cfg.Netlify.APIURL,
			}, d.httpClient),
			deploy.NewVercelAdapter(deploy.VercelConfig{
				Token:  cfg.Vercel.Token,
				APIURL: cfg.Vercel.APIURL,
			}, d.httpClient),
			deploy.NewRenderAdapter(deploy.RenderConfig{
				Token:     cfg.Render.Token,
				ServiceID: cfg.Render.ServiceID,
				APIURL:    cfg.Render.APIURL,
			}, d.httpClient),
		},
		Breaker: deploy.BreakerConfig{
			Failures:    cfg.HTTP.BreakerFailures,
			OpenTimeout: cfg.HTTP.BreakerOpenTimeout,
		},
		License:    gate,
		LicenseKey: cfg.License.Key,
	})
	if err != nil {
		return fmt.Errorf("failed to create deploy dispatcher: %w", err)
	}
	d.dispatcher = dispatcher

	d.hooks = deploy.NewHookTrigger(deploy.HooksConfig{
		Render:  cfg.Hooks.Render,
		Vercel:  cfg.Hooks.Vercel,
		Netlify: cfg.Hooks.Netlify,
	}, d.httpClient)

	d.assistant = assistant.New(assistant.Config{
		Anthropic: assistant.ProviderConfig{
			APIKey:  cfg.AI.AnthropicKey,
			BaseURL: cfg.AI.AnthropicURL,
			Model:   cfg.AI.AnthropicModel,
		},
		OpenAI: assistant.ProviderConfig{
			APIKey:  cfg.AI.OpenAIKey,
			BaseURL: cfg.AI.OpenAIURL,
			Model:   cfg.AI.OpenAIModel,
		},
		MaxTokens: cfg.AI.MaxTokens,
		Timeout:   cfg.HTTP.Timeout,
	})

	d.logger.Debug().
		Bool("license_enforced", cfg.License.Enforce).
		Msg("Core modules initialized")

	return nil
}

// initializeServices builds the gateway and registers its channels
func (d *Daemon) initializeServices() error {
	d.gatewayServer = gateway.NewServer(gateway.ServerOptions{
		Host:               d.config.Gateway.Host,
		Port:               d.config.Gateway.Port,
		SharedSecret:       d.config.Gateway.SharedSecret,
		RateLimitPerMinute: d.config.Gateway.RateLimitPerMinute,
		TrustedProxies:     d.config.Gateway.TrustedProxies,
	}, d.logger.With().Str("component", "gateway").Logger())

	if err := d.registerChannels(); err != nil {
		return fmt.Errorf("failed to register gateway channels: %w", err)
	}

	d.lifecycle = NewLifecycleManager(d)
	return nil
}

// Start starts the gateway and writes the PID file
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	logger := d.logger.GetZerolog().With().Str("trace_id", tracing.NewTraceID()).Logger()
	logger.Info().Msg("Starting vibely daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.setStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if err := d.gatewayServer.Start(); err != nil {
		_ = d.lifecycle.Stop()
		d.setStopped()
		return fmt.Errorf("failed to start gateway server: %w", err)
	}

	logger.Info().
		Str("addr", d.gatewayServer.Addr()).
		Str("projects_root", d.sessions.Root()).
		Msg("Daemon started")

	return nil
}

func (d *Daemon) setStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Stop stops the gateway if it was started and releases every resource
func (d *Daemon) Stop() error {
	var stopErr error

	d.stopOnce.Do(func() {
		d.mu.RLock()
		running := d.running
		d.mu.RUnlock()

		if running {
			d.logger.Info().Msg("Stopping vibely daemon")
			if err := d.gatewayServer.Stop(); err != nil {
				d.logger.Error().Err(err).Msg("Failed to stop gateway server")
				stopErr = err
			}
			if err := d.lifecycle.Stop(); err != nil {
				d.logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
			}
			d.setStopped()
		} else {
			d.gatewayServer.Close()
		}

		if err := d.verifier.Close(); err != nil {
			d.logger.Debug().Err(err).Msg("Failed to close license client")
		}
		if err := d.httpClient.Close(); err != nil {
			d.logger.Debug().Err(err).Msg("Failed to close deploy client")
		}

		d.shutdownTracing()

		if err := observability.GetAuditLogger().Close(); err != nil {
			d.logger.Error().Err(err).Msg("Failed to close audit logger")
		}

		if running {
			d.logger.Info().Msg("Daemon stopped successfully")
		}
	})

	return stopErr
}

func (d *Daemon) shutdownTracing() {
	if !d.tracingEnabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
		d.logger.Error().Err(err).Msg("Failed to shutdown tracing")
	}
	d.tracingEnabled = false
}

// Status is a snapshot of the daemon state
type Status struct {
	Running   bool          `json:"running"`
	Uptime    time.Duration `json:"uptime"`
	StartTime time.Time     `json:"startTime"`
	Addr      string        `json:"addr,omitempty"`
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
		status.Addr = d.gatewayServer.Addr()
	}

	return status
}

// Wait blocks until ctx is done or SIGINT/SIGTERM arrives, then stops the daemon
func (d *Daemon) Wait(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		d.logger.Info().Str("signal", sig.String()).Msg("Received signal")
	case <-ctx.Done():
		d.logger.Info().Msg("Context canceled")
	}

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetSessionStore returns the session store
func (d *Daemon) GetSessionStore() *session.Store {
	return d.sessions
}

// GetDispatcher returns the deploy dispatcher
func (d *Daemon) GetDispatcher() *deploy.Dispatcher {
	return d.dispatcher
}

// GetGatewayServer returns the gateway server
func (d *Daemon) GetGatewayServer() *gateway.Server {
	return d.gatewayServer
}
