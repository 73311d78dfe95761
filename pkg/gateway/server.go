package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vibely/vibely/internal/observability"
	"github.com/vibely/vibely/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Server exposes the channel router over HTTP
type Server struct {
	options     ServerOptions
	router      *ChannelRouter
	auth        *AuthHandler
	rateLimiter *RateLimiter
	logger      zerolog.Logger

	trustedProxies map[string]struct{}

	server    *http.Server
	listener  net.Listener
	startTime time.Time

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new gateway server
func NewServer(options ServerOptions, logger zerolog.Logger) *Server {
	if options.Host == "" {
		options.Host = "127.0.0.1"
	}
	if options.MaxBodyBytes <= 0 {
		options.MaxBodyBytes = 64 << 20
	}
	if options.ShutdownTimeout <= 0 {
		options.ShutdownTimeout = 30 * time.Second
	}

	observability.EnsureRegistered()

	trusted := make(map[string]struct{}, len(options.TrustedProxies))
	for _, proxy := range options.TrustedProxies {
		trusted[proxy] = struct{}{}
	}

	return &Server{
		options:        options,
		router:         NewChannelRouter(),
		auth:           NewAuthHandler(options.SharedSecret),
		rateLimiter:    NewRateLimiter(options.RateLimitPerMinute),
		logger:         logger,
		startTime:      time.Now(),
		trustedProxies: trusted,
	}
}

// RegisterChannel registers a channel handler
func (s *Server) RegisterChannel(name string, schema map[string]interface{}, handler ChannelHandler) error {
	return s.router.RegisterChannel(name, schema, handler)
}

// Router returns the channel router
func (s *Server) Router() *ChannelRouter {
	return s.router
}

// Handler returns the HTTP handler serving every gateway route
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", observability.MetricsHandler())
	mux.HandleFunc("POST /v1/{channel}", s.handleChannel)
	return mux
}

// Start listens and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.options.Host, strconv.Itoa(s.options.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.startTime = time.Now()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().
		Str("addr", listener.Addr().String()).
		Bool("auth", s.auth.Enabled()).
		Strs("channels", s.router.Channels()).
		Msg("Starting gateway server")

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Addr returns the listening address, empty before Start
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop waits for in-flight requests and shuts the server down
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(s.options.ShutdownTimeout):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	s.rateLimiter.Stop()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown gateway server: %w", err)
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

// Close releases background resources of a server that was never started
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:    "ok",
		Uptime:    time.Since(s.startTime).Seconds(),
		Channels:  s.router.Channels(),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	channel := r.PathValue("channel")

	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		s.respond(w, channel, start, http.StatusServiceUnavailable,
			Envelope{Channel: channel, Response: failure("Server is shutting down")})
		return
	}
	s.inFlightReqs.Add(1)
	s.shutdownMu.RUnlock()
	defer s.inFlightReqs.Done()

	if !s.auth.Authenticate(r) {
		s.respond(w, channel, start, http.StatusUnauthorized,
			Envelope{Channel: channel, Response: failure("Unauthorized")})
		return
	}

	ip := s.clientIP(r)
	if !s.rateLimiter.Allow(ip) {
		w.Header().Set("Retry-After", strconv.Itoa(s.rateLimiter.RetryAfter(ip)))
		s.logger.Warn().Str("ip", ip).Str("channel", channel).Msg("Rate limit exceeded")
		s.respond(w, channel, start, http.StatusTooManyRequests,
			Envelope{Channel: channel, Response: failure("Rate limit exceeded")})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.options.MaxBodyBytes))
	if err != nil {
		s.respond(w, channel, start, http.StatusRequestEntityTooLarge,
			Envelope{Channel: channel, Response: failure("Request body too large or unreadable: %v", err)})
		return
	}

	ctx := tracing.NewRequestContext(r.Context())
	ctx, span := tracing.StartSpan(ctx, "vibely.gateway", "gateway."+channel,
		attribute.String("channel", channel),
		attribute.String("request_id", tracing.GetRequestID(ctx)),
	)
	defer span.End()

	envelope, status := s.router.Route(ctx, channel, body)
	span.SetAttributes(attribute.Int("http.status_code", status))

	s.respond(w, channel, start, status, envelope)
}

func (s *Server) respond(w http.ResponseWriter, channel string, start time.Time, status int, envelope Envelope) {
	// Labels stay bounded to registered channels.
	label := channel
	if !s.router.HasChannel(channel) {
		label = "unknown"
	}
	observability.RecordGatewayRequest(label, status, time.Since(start))

	s.logger.Debug().
		Str("channel", channel).
		Int("status", status).
		Dur("duration", time.Since(start)).
		Msg("Channel request handled")

	writeJSON(w, status, envelope)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// clientIP returns the key used for rate limiting. X-Forwarded-For is only
// honored when the direct peer is a configured trusted proxy.
func (s *Server) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	if _, trusted := s.trustedProxies[host]; !trusted {
		return host
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return host
}
