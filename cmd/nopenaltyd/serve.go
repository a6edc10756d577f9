package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	auth "github.com/mind-engage/nopenaltycalc/internal/auth/middleware"
	"github.com/mind-engage/nopenaltycalc/internal/config"
	"github.com/mind-engage/nopenaltycalc/internal/rbac"
	"github.com/mind-engage/nopenaltycalc/pkg/nopenalty/httpchi"
	"github.com/mind-engage/nopenaltycalc/pkg/nopenalty/sqlstore"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the no-penalty read API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, dbh, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer dbh.Close()
			defer logger.Sync() //nolint:errcheck

			api := &httpchi.API{Store: sqlstore.New(dbh), Logger: logger}
			srv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           newRouter(cfg, api, auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL)),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("db", cfg.DBDriver))
				errCh <- srv.ListenAndServe()
			}()
			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}

			logger.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
}

func newRouter(cfg config.Config, api *httpchi.API, authSvc *auth.AuthService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.AdminLoginHandler(authSvc, cfg.AdminUser, cfg.AdminPassHash))
	}

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(rbac.RequireOwnerOr("nopenalty:view-own", "nopenalty:view-all", httpchi.IsOwner))
		api.Routes(pr)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
