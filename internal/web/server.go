package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/willow/internal/config"
	"github.com/hpungsan/willow/internal/identity"
	"github.com/hpungsan/willow/internal/ops"
	"github.com/hpungsan/willow/internal/session"
)

// Authenticator returns the identity provider for the HTTP API: bearer JWTs
// when a secret is configured, otherwise the configured static user.
func Authenticator(cfg *config.Config) identity.Authenticator {
	if cfg.JWTSecret != "" {
		return identity.NewJWT([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	}
	return identity.Static(cfg.User)
}

// NewServer creates and configures the HTTP server for the Willow API.
func NewServer(core *ops.Core, sessions session.Backend, auth identity.Authenticator, cfg *config.Config, log *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:           NewHandler(core, sessions, auth, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler builds the routed, middleware-wrapped API handler.
func NewHandler(core *ops.Core, sessions session.Backend, auth identity.Authenticator, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handlers{
		core:     core,
		sessions: sessions,
		log:      log,
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /profiles", h.HandleListProfiles)
	mux.HandleFunc("POST /profiles", h.HandleCreateProfile)
	mux.HandleFunc("DELETE /profiles/{id}", h.HandleDeleteProfile)
	mux.HandleFunc("POST /profiles/{id}/select", h.HandleSelectProfile)
	mux.HandleFunc("GET /session", h.HandleSession)
	mux.HandleFunc("GET /avatar", h.HandleGetAvatar)
	mux.HandleFunc("PUT /avatar", h.HandleSaveAvatar)
	mux.HandleFunc("GET /avatar/history", h.HandleAvatarHistory)
	mux.HandleFunc("POST /avatar/repair", h.HandleRepairAvatar)
	mux.HandleFunc("GET /catalog", h.HandleCatalog)

	handler := withSession(mux)
	handler = withIdentity(auth, log, handler)
	return securityHeaders(handler)
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, log *zap.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("willow API running", zap.String("addr", "http://"+srv.Addr))

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
