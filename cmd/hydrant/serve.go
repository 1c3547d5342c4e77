package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hydrant-api/hydrant/bundle"
	"github.com/hydrant-api/hydrant/field"
	"github.com/hydrant-api/hydrant/registry"
	"github.com/hydrant-api/hydrant/resource"
	"github.com/hydrant-api/hydrant/resource/sqlstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the demo resources over HTTP",
	Long: `Expose the demo blog resources as a JSON API. List and detail
renderings come straight from the field engine, so embed policies and
per-viewer visibility apply to every response. POST /login exchanges the
configured admin credentials for a bearer token that unlocks the
authenticated-only fields.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := Load()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		if cfg.Server.JWTSecret == "" {
			return fmt.Errorf("server.jwt_secret must be set in hydrant.yml before serving")
		}

		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx := cmd.Context()
		stores, err := OpenStores(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer stores.Close()
		if err := stores.EnsureTables(ctx); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}

		reg, err := BuildRegistry(cfg, stores, logger)
		if err != nil {
			return err
		}

		auth := NewAuthService(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
		adminHash := ""
		if cfg.Server.AdminPassword != "" {
			adminHash, err = HashPassword(cfg.Server.AdminPassword)
			if err != nil {
				return err
			}
		} else {
			logger.Warn("server.admin_password is not set; /login is disabled")
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           newRouter(reg, cfg, auth, adminHash, logger),
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1 MB
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()
		logger.Info("serving resources",
			zap.String("addr", cfg.Server.Addr),
			zap.String("backend", cfg.Store.Backend),
			zap.Strings("resources", reg.Names()),
		)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case sig := <-sigChan:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}

// newRouter wires the resource operations onto a chi router under the
// configured locator prefix, so rendered locators double as routes.
func newRouter(reg *registry.Registry, cfg *Config, auth *AuthService, adminHash string, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(viewerMiddleware(auth))

	r.Route(cfg.LocatorPrefix, func(r chi.Router) {
		r.Post("/login", loginHandler(cfg, auth, adminHash))
		r.Get("/schema", schemaHandler(reg))
		r.Route("/{resource}", func(r chi.Router) {
			r.Get("/", listHandler(reg))
			r.Post("/", createHandler(reg))
			r.Get("/{pk}", detailHandler(reg, cfg))
			r.Put("/{pk}", updateHandler(reg))
			r.Delete("/{pk}", deleteHandler(reg, cfg))
		})
	})
	return r
}

func loginHandler(cfg *Config, auth *AuthService, adminHash string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if adminHash == "" {
			respondError(w, http.StatusForbidden, "login is disabled")
			return
		}
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if creds.Email != cfg.Server.AdminEmail || !CheckPassword(creds.Password, adminHash) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		token, err := auth.GenerateToken(creds.Email)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "could not issue token")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"token": token})
	}
}

func schemaHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"resources": reg.DescribeAll()})
	}
}

func listHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := routeResource(reg, r)
		if !ok {
			respondError(w, http.StatusNotFound, "unknown resource")
			return
		}
		objects, err := res.List(r.Context())
		if err != nil {
			respondEngineError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"objects": objects})
	}
}

func detailHandler(reg *registry.Registry, cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := routeResource(reg, r)
		if !ok {
			respondError(w, http.StatusNotFound, "unknown resource")
			return
		}
		obj, err := res.ResolveLocator(r.Context(), routeLocator(cfg, r))
		if err != nil {
			respondEngineError(w, err)
			return
		}
		data, err := res.Render(r.Context(), obj, false)
		if err != nil {
			respondEngineError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, data)
	}
}

func createHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := routeResource(reg, r)
		if !ok {
			respondError(w, http.StatusNotFound, "unknown resource")
			return
		}
		data, ok := decodeBody(w, r)
		if !ok {
			return
		}
		b := bundle.New(bundle.WithContext(r.Context()), bundle.WithData(data))
		if err := res.Create(r.Context(), b); err != nil {
			respondEngineError(w, err)
			return
		}
		rendered, err := res.Render(r.Context(), b.Obj, false)
		if err != nil {
			respondEngineError(w, err)
			return
		}
		w.Header().Set("Location", res.Locator(b.Obj))
		respondJSON(w, http.StatusCreated, rendered)
	}
}

func updateHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := routeResource(reg, r)
		if !ok {
			respondError(w, http.StatusNotFound, "unknown resource")
			return
		}
		data, ok := decodeBody(w, r)
		if !ok {
			return
		}
		b := bundle.New(bundle.WithContext(r.Context()), bundle.WithData(data))
		selectors := map[string]any{res.PrimaryKey(): chi.URLParam(r, "pk")}
		if err := res.Update(r.Context(), b, selectors); err != nil {
			respondEngineError(w, err)
			return
		}
		rendered, err := res.Render(r.Context(), b.Obj, false)
		if err != nil {
			respondEngineError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, rendered)
	}
}

func deleteHandler(reg *registry.Registry, cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := routeResource(reg, r)
		if !ok {
			respondError(w, http.StatusNotFound, "unknown resource")
			return
		}
		if err := res.Delete(r.Context(), routeLocator(cfg, r)); err != nil {
			respondEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func routeResource(reg *registry.Registry, r *http.Request) (*resource.Resource, bool) {
	res, err := demoResource(reg, chi.URLParam(r, "resource"))
	if err != nil {
		return nil, false
	}
	return res, true
}

func routeLocator(cfg *Config, r *http.Request) string {
	return fmt.Sprintf("%s/%s/%s", cfg.LocatorPrefix, chi.URLParam(r, "resource"), chi.URLParam(r, "pk"))
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		respondError(w, http.StatusBadRequest, "request body must be a JSON object")
		return nil, false
	}
	return data, true
}

// viewerMiddleware records the bearer token's subject on the request
// context. Anonymous requests pass through; a presented but invalid
// token is rejected.
func viewerMiddleware(auth *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				respondError(w, http.StatusUnauthorized, "authorization header must be a bearer token")
				return
			}
			claims, err := auth.ValidateToken(token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			email, _ := claims["email"].(string)
			next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), email)))
		})
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already out; an encode failure has nowhere to go.
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]any{"error": msg})
}

// respondEngineError translates engine errors into API statuses.
func respondEngineError(w http.ResponseWriter, err error) {
	var verrs *resource.Errors
	switch {
	case errors.As(err, &verrs):
		respondJSON(w, http.StatusUnprocessableEntity, verrs)
	case field.IsNotFound(err):
		respondError(w, http.StatusNotFound, err.Error())
	case field.IsAmbiguousMatch(err), sqlstore.IsDuplicateKey(err):
		respondError(w, http.StatusConflict, err.Error())
	case field.IsInvalidSelector(err),
		field.IsAccessError(err),
		field.IsShapeError(err),
		field.IsConversionError(err):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
