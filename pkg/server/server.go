package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/api/idtoken"

	"github.com/raterudder/glowmeter/pkg/log"
	"github.com/raterudder/glowmeter/pkg/poller"
	"github.com/raterudder/glowmeter/pkg/sensor"
)

// Platform is the set of sensors served by the Server.
type Platform interface {
	poller.Refresher
	States() []sensor.State
	Sensor(id string) (sensor.Sensor, bool)
}

// Poller refreshes the Platform in the background while the Server runs.
type Poller interface {
	Start(ctx context.Context, r poller.Refresher) error
	Stop()
}

// Server serves the sensor states, health and metrics over HTTP and drives
// the poller that keeps the sensors fresh.
type Server struct {
	platform   Platform
	poller     Poller
	collectors []prometheus.Collector

	listenAddr string
	listener   net.Listener
	httpServer *http.Server
	serverName string

	verifiers map[string]tokenVerifier
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration. collectors
// are exposed on /metrics next to the sensor values.
func Configured(p Poller, collectors ...prometheus.Collector) *Server {
	srv := &Server{
		poller:     p,
		collectors: collectors,
		serverName: "glowmeter",
	}

	// get the port from PORT when running in a container
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	oidcIssuer := lflag.String("oidc-issuer", "", "OIDC issuer URL bearer tokens are verified against")
	oidcAudience := lflag.String("oidc-audience", "", "Client ID bearer tokens from oidc-issuer must be issued to")
	googleAudience := lflag.String("google-audience", "", "Audience of Google-signed ID tokens allowed to read the API")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.verifiers = map[string]tokenVerifier{}
		if *oidcIssuer != "" {
			if *oidcAudience == "" {
				log.Ctx(context.Background()).Error("oidc-audience is required with oidc-issuer")
				os.Exit(1)
			}
			provider, err := oidc.NewProvider(context.Background(), *oidcIssuer)
			if err != nil {
				log.Ctx(context.Background()).Error("failed to initialize OIDC provider", slog.String("issuer", *oidcIssuer), slog.Any("error", err))
				os.Exit(1)
			}
			srv.verifiers["oidc"] = oidcVerifier(provider.Verifier(&oidc.Config{ClientID: *oidcAudience}).Verify)
		}
		if *googleAudience != "" {
			srv.verifiers["google"] = googleVerifier(*googleAudience, idtoken.Validate)
		}
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/sensors", s.handleListSensors)
	apiMux.HandleFunc("GET /api/sensors/{id}", s.handleGetSensor)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.authMiddleware(apiMux))
	mux.Handle("GET /metrics", s.metricsHandler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

// Run starts the HTTP server and then the poller and blocks until the context
// is canceled or an error occurs. The server is listening before the first
// poll starts. It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, p Platform) error {
	s.platform = p
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddr, err)
	}
	s.listener = ln

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if err := s.poller.Start(ctx, p); err != nil {
		s.httpServer.Close()
		ln.Close()
		return fmt.Errorf("failed to start poller: %w", err)
	}
	defer s.poller.Stop()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
