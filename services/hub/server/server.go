// Package server exposes the asset ledger and risk engine over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tilt-github/aave-v4-sub006/native/common"
	"github.com/Tilt-github/aave-v4-sub006/native/events"
	"github.com/Tilt-github/aave-v4-sub006/native/hub"
	"github.com/Tilt-github/aave-v4-sub006/native/spoke"
	"github.com/Tilt-github/aave-v4-sub006/observability"
)

// Stager flushes buffered state writes after a successful mutation and drops
// them when the request fails, so a risk operation that dies between its hub
// call and its own writes leaves no half-applied records behind.
type Stager interface {
	Commit() error
	Discard()
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Hub    *hub.Engine
	Risk   *spoke.Engine
	Rates  hub.RateStrategy
	Prices *StaticPrices
	Pauses common.PauseView
	Feed   *events.Recorder
	Stage  Stager
	Logger *slog.Logger
}

// Server encapsulates dependencies for the HTTP API.
type Server struct {
	hub    *hub.Engine
	risk   *spoke.Engine
	rates  hub.RateStrategy
	prices *StaticPrices
	pauses common.PauseView
	feed   *events.Recorder
	logger *slog.Logger

	stage   Stager
	stageMu sync.Mutex

	router http.Handler
}

// New constructs a configured HTTP router over the engines.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		hub:    cfg.Hub,
		risk:   cfg.Risk,
		rates:  cfg.Rates,
		prices: cfg.Prices,
		pauses: cfg.Pauses,
		feed:   cfg.Feed,
		stage:  cfg.Stage,
		logger: logger,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(s.staged)
		api.Route("/assets", func(assets chi.Router) {
			assets.Use(s.guard(common.ModuleHub))
			assets.Post("/", s.ListAsset)
			assets.Get("/{asset}", s.GetAsset)
			assets.Post("/{asset}/spokes", s.RegisterSpoke)
			assets.Get("/{asset}/spokes/{spoke}", s.GetSubledger)
			assets.Post("/{asset}/accrue", s.Accrue)
			assets.Post("/{asset}/rates", s.SetRateData)
		})

		api.Route("/reserves", func(reserves chi.Router) {
			reserves.Use(s.guard(common.ModuleSpoke))
			reserves.Post("/", s.ListReserve)
			reserves.Post("/{reserve}/config", s.SetDynamicConfig)
			reserves.Post("/{reserve}/flags", s.SetReserveFlags)
			reserves.Post("/{reserve}/price", s.SetPrice)
		})

		api.Route("/users/{user}", func(users chi.Router) {
			users.Use(s.guard(common.ModuleSpoke))
			users.Post("/supply", s.Supply)
			users.Post("/withdraw", s.Withdraw)
			users.Post("/borrow", s.Borrow)
			users.Post("/repay", s.Repay)
			users.Post("/collateral", s.SetCollateral)
			users.Get("/health", s.Health)
			users.Get("/positions/{reserve}", s.Position)
		})

		api.With(s.guard(common.ModuleSpoke)).Post("/liquidations", s.Liquidate)
		api.Get("/events", s.Events)
	})

	return r
}

// staged serializes mutating requests against the shared write buffer and
// commits or discards it on the request's outcome. Reads bypass the buffer
// lock entirely; without a stager the middleware is a no-op.
func (s *Server) staged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.stage == nil || r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		s.stageMu.Lock()
		defer s.stageMu.Unlock()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if ww.Status() >= 400 {
			s.stage.Discard()
			return
		}
		if err := s.stage.Commit(); err != nil {
			s.logger.Error("commit staged state", "error", err)
		}
	})
}

// guard rejects requests for paused modules before any handler runs.
func (s *Server) guard(module string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := common.Guard(s.pauses, module); err != nil {
				respondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		module := "hub"
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			if pattern := routeCtx.RoutePattern(); pattern != "" {
				module = pattern
			}
		}
		observability.ModuleMetrics().Observe(module, r.Method, ww.Status(), time.Since(start))
	})
}
