// Package server is the composition root of the MoodMingle backend: it opens the
// database, builds services and handlers, and mounts them on a chi router.
//
// Routes:
//
//	GET  /healthz               database ping
//	GET  /metrics               Prometheus exposition
//	GET  /current-user          signed-in identity or the guest placeholder
//	POST /login /signup /logout
//	POST /get-recommendations   POST /get_weather
//	GET  /get-interests         PUT /update-interests   POST /save-interests
//	PUT  /update-profile
//	GET  /saved-activities      POST /save-activity     POST /remove-activity
//
// The last three rows require a session.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/sakif/moodmingle/internal/auth"
	"github.com/sakif/moodmingle/internal/config"
	"github.com/sakif/moodmingle/internal/handler"
	"github.com/sakif/moodmingle/internal/middleware"
	"github.com/sakif/moodmingle/internal/recommend"
	sqliteRepo "github.com/sakif/moodmingle/internal/repository/sqlite"
	"github.com/sakif/moodmingle/internal/service"
	"github.com/sakif/moodmingle/internal/weather"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router and the database connection. The database is closed when
// Start returns or Close is called.
type Server struct {
	router chi.Router
	config config.Server
	logger *slog.Logger
	db     *sqliteRepo.DB

	recommender recommend.Recommender
	weather     weather.Provider
}

// Option overrides a dependency New would otherwise build from the config.
type Option func(*Server)

// WithRecommender replaces the recommender chosen from GEMINI_API_KEY.
func WithRecommender(r recommend.Recommender) Option {
	return func(s *Server) { s.recommender = r }
}

// WithWeather replaces the weather provider chosen from WEATHER_API_KEY.
func WithWeather(p weather.Provider) Option {
	return func(s *Server) { s.weather = p }
}

func New(cfg config.Server, logger *slog.Logger, opts ...Option) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start calls it on the way out.
func (s *Server) Close() error {
	return s.db.Close()
}

func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.SessionTTL)
	if err != nil {
		return err
	}
	if err := s.resolveProviders(); err != nil {
		return err
	}

	accounts := service.NewAccountService(s.db, s.db, tokens, auth.NewPasswordService(), s.logger)
	activities := service.NewActivityService(s.db, s.logger)
	recs := service.NewRecommendationService(s.recommender, s.logger)
	lookups := service.NewWeatherService(s.weather, s.logger)

	authHandler := handler.NewAuthHandler(accounts, s.config.SecureCookies, s.logger)
	activityHandler := handler.NewActivityHandler(activities, s.logger)
	discoverHandler := handler.NewDiscoverHandler(recs, lookups, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Post("/login", authHandler.HandleLogin)
	s.router.Post("/signup", authHandler.HandleSignup)
	s.router.Post("/logout", authHandler.HandleLogout)
	s.router.Post("/get-recommendations", discoverHandler.HandleRecommendations)
	s.router.Post("/get_weather", discoverHandler.HandleWeather)

	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))
		r.Get("/current-user", authHandler.HandleCurrentUser)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/get-interests", authHandler.HandleGetInterests)
		r.Put("/update-interests", authHandler.HandleUpdateInterests)
		r.Post("/save-interests", authHandler.HandleSaveInterests)
		r.Put("/update-profile", authHandler.HandleUpdateProfile)
		r.Get("/saved-activities", activityHandler.HandleList)
		r.Post("/save-activity", activityHandler.HandleSave)
		r.Post("/remove-activity", activityHandler.HandleRemove)
	})

	return nil
}

// resolveProviders picks Gemini and WeatherAPI when their keys are configured and
// the offline implementations otherwise. Options set before this win.
func (s *Server) resolveProviders() error {
	if s.recommender == nil {
		if s.config.GeminiAPIKey == "" {
			s.logger.Warn("GEMINI_API_KEY not set, serving catalog recommendations")
			s.recommender = recommend.Catalog{}
		} else {
			g, err := recommend.NewGemini(recommend.GeminiConfig{
				APIKey: s.config.GeminiAPIKey,
				Model:  s.config.GeminiModel,
			}, s.logger)
			if err != nil {
				return fmt.Errorf("creating recommender: %w", err)
			}
			s.recommender = g
		}
	}

	if s.weather == nil {
		if s.config.WeatherAPIKey == "" {
			s.logger.Warn("WEATHER_API_KEY not set, weather lookups will be unavailable")
			s.weather = weather.Static{}
		} else {
			w, err := weather.NewWeatherAPI(weather.Config{
				WeatherAPIKey: s.config.WeatherAPIKey,
				GoogleAPIKey:  s.config.GoogleAPIKey,
			}, s.logger)
			if err != nil {
				return fmt.Errorf("creating weather provider: %w", err)
			}
			s.weather = w
		}
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, body := http.StatusOK, map[string]string{"status": "ok"}
	if err := s.db.Ping(); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for up to
// 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("recommender", s.recommender.Name()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
