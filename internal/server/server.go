package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"transaction-engine/internal/config"
	"transaction-engine/internal/domain"
	"transaction-engine/internal/handler"
	"transaction-engine/internal/metrics"
	"transaction-engine/internal/repository"
	"transaction-engine/internal/service"
)

// Server wires the datastore, services and HTTP routes together.
type Server struct {
	router *mux.Router
	server *http.Server
	db     *sql.DB
	store  *repository.Store
	logger *zap.Logger
	port   string
}

// New opens the database, builds the service graph and registers routes. The
// accounts client and event publisher are injected so tests can fake the
// external systems.
func New(cfg *config.Config, logger *zap.Logger, accounts domain.AccountClient, publisher domain.EventPublisher) (*Server, error) {
	db, err := sql.Open("postgres", cfg.Postgres.URI)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("connected to database")

	store := repository.NewStore(db, logger)

	transferService := service.NewTransferService(store, accounts, publisher, logger)
	ledgerService := service.NewLedgerService(store, logger)

	transferHandler := handler.NewTransferHandler(transferService)
	ledgerHandler := handler.NewLedgerHandler(ledgerService)

	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))
	router.Use(actorMiddleware)
	router.Use(metricsMiddleware)

	router.HandleFunc("/transfer", transferHandler.Transfer).Methods("POST")
	router.HandleFunc("/transactions", transferHandler.ListTransactions).Methods("GET")
	router.HandleFunc("/transactions/{id}", transferHandler.GetTransaction).Methods("GET")
	router.HandleFunc("/ledger/entries", ledgerHandler.ListEntries).Methods("GET")
	router.HandleFunc("/ledger/entries/{transactionId}", ledgerHandler.EntriesForTransfer).Methods("GET")
	router.HandleFunc("/admin/metrics", transferHandler.Summary).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unavailable"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")

	return &Server{
		router: router,
		db:     db,
		store:  store,
		logger: logger,
	}, nil
}

func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("user_agent", r.UserAgent()),
			)
		})
	}
}

// actorMiddleware resolves the acting user from gateway headers. Requests
// without identity headers run as the direct API user.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := domain.DirectAPIActor()

		rawID := r.Header.Get("X-User-Id")
		if rawID == "" {
			rawID = r.Header.Get("userId")
		}
		email := r.Header.Get("X-User-Email")
		if email == "" {
			email = r.Header.Get("email")
		}

		if rawID != "" {
			if id, err := strconv.ParseInt(rawID, 10, 64); err == nil && id > 0 {
				actor.UserID = id
				if email != "" {
					actor.Email = email
				}
			}
		}

		next.ServeHTTP(w, r.WithContext(domain.WithActor(r.Context(), actor)))
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(ww.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start listens on the given port ("0" picks a free one) and serves in the
// background.
func (s *Server) Start(port string) (string, error) {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting server", zap.String("port", s.port))

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server stopped unexpectedly", zap.Error(err))
		}
	}()

	return s.port, nil
}

// Stop shuts the HTTP server down gracefully and closes the database.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.db != nil {
		defer s.db.Close()
	}
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) GetPort() string {
	return s.port
}

func (s *Server) GetBaseURL() string {
	return "http://localhost:" + s.port
}

// GetRouter exposes the router for tests.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// Store exposes the datastore for background workers built alongside the
// server, such as the reconciliation sweep.
func (s *Server) Store() domain.Datastore {
	return s.store
}
