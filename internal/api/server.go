package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vaidashi/getmethis-dashboard/internal/apiclient"
	"github.com/vaidashi/getmethis-dashboard/internal/auth"
	"github.com/vaidashi/getmethis-dashboard/internal/config"
	"github.com/vaidashi/getmethis-dashboard/internal/dashboard"
	"github.com/vaidashi/getmethis-dashboard/internal/notify"
	"github.com/vaidashi/getmethis-dashboard/internal/payment"
	"github.com/vaidashi/getmethis-dashboard/internal/resource"
	"github.com/vaidashi/getmethis-dashboard/internal/resources"
	"github.com/vaidashi/getmethis-dashboard/internal/session"
	"github.com/vaidashi/getmethis-dashboard/internal/storage"
	"github.com/vaidashi/getmethis-dashboard/pkg/circuitbreaker"
	"github.com/vaidashi/getmethis-dashboard/pkg/kafka"
	"github.com/vaidashi/getmethis-dashboard/pkg/logger"
	"github.com/vaidashi/getmethis-dashboard/pkg/middleware"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	router     *mux.Router
	httpServer *http.Server

	storage  storage.Storage
	postgres *storage.Postgres
	sessions *session.Store
	toasts   *notify.Recorder
	auth     *auth.Service
	dash     *dashboard.Dashboard
	flow     *payment.Flow
	throttle *middleware.Throttle

	kafkaProducer *kafka.Producer
	kafkaConsumer *kafka.Consumer
	bridge        *session.Bridge
	relay         *notify.KafkaNotifier
	relayBreaker  *circuitbreaker.CircuitBreaker
}

// NewServer wires storage, the session store, the API client and every page
// controller behind the dashboard shell routes
func NewServer(cfg *config.Config, logger logger.Logger) (*Server, error) {
	ctx := context.Background()

	s := &Server{
		config: cfg,
		logger: logger,
		router: mux.NewRouter(),
		toasts: notify.NewRecorder(),
	}

	if err := s.openStorage(); err != nil {
		return nil, err
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, logger)

		if err != nil {
			s.closeStorage()
			return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
		}
		s.kafkaProducer = producer
	}

	notifier := notify.Multi{s.toasts, notify.NewLogNotifier(logger)}

	if s.kafkaProducer != nil {
		s.relayBreaker = circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			HalfOpenMaxCalls: 1,
		})
		s.relay = notify.NewKafkaNotifier(s.kafkaProducer, cfg.Kafka.NotificationsTopic, cfg.StorageProfile, logger).
			WithBreaker(s.relayBreaker)
		s.relay.Start()
		notifier = append(notifier, s.relay)
	}

	sessions, err := session.NewStore(ctx, s.storage, logger)

	if err != nil {
		s.closeBackends()
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	s.sessions = sessions

	client := apiclient.NewClient(cfg.APIBaseURL, cfg.APITimeout, sessions, notifier, logger)
	set := resources.NewSet(client)
	registry := resource.NewRegistry()

	s.flow = payment.NewFlow(payment.NewGateway(set), s.storage, registry, notifier, logger)
	s.auth = auth.NewService(set.Auth, sessions, notifier, logger)
	s.dash = dashboard.New(dashboard.Deps{
		API:      set,
		Registry: registry,
		Flow:     s.flow,
		Storage:  s.storage,
		Notifier: notifier,
		Logger:   logger,
	})
	s.dash.Mount(ctx)
	s.dash.Follow(sessions)

	if s.kafkaProducer != nil {
		s.startBridge()
	}

	s.throttle = middleware.NewThrottle(middleware.ThrottleConfig{
		Burst:             cfg.Login.Burst,
		RefillPerSecond:   cfg.Login.PerMinute / 60,
		IdleTTL:           10 * time.Minute,
		TrustForwardedFor: cfg.Login.TrustForwardedFor,
	}, logger)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.APITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()

	return s, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	s.dash.Unmount()
	s.flow.Close()
	s.throttle.Stop()
	s.closeBackends()

	return err
}

func (s *Server) openStorage() error {
	if s.config.StorageDriver != "postgres" {
		s.storage = storage.NewMemory()
		s.logger.Info("Using in-memory storage", "profile", s.config.StorageProfile)
		return nil
	}

	pg, err := storage.NewPostgres(s.config, s.logger)

	if err != nil {
		return err
	}

	s.postgres = pg
	s.storage = pg
	return nil
}

// startBridge relays session changes between instances sharing the storage
// profile. Each instance needs every session event, so the consumer group is
// unique per instance.
func (s *Server) startBridge() {
	s.bridge = session.NewBridge(s.sessions, s.kafkaProducer, s.config.Kafka.SessionTopic, s.logger)
	s.bridge.Start()

	consumer, err := kafka.NewConsumer(&kafka.ConsumerConfig{
		Brokers:       s.config.Kafka.Brokers,
		Topics:        []string{s.config.Kafka.SessionTopic},
		ConsumerGroup: s.config.Kafka.ConsumerGroup + "-" + s.bridge.InstanceID(),
	}, s.logger)

	if err != nil {
		s.logger.Error("Failed to create Kafka consumer, session changes from other instances will be missed", "error", err)
		return
	}

	consumer.RegisterHandler(s.config.Kafka.SessionTopic, s.bridge)

	if err := consumer.Start(); err != nil {
		// Non-fatal, this instance still publishes its own changes
		s.logger.Error("Failed to start Kafka consumer", "error", err)
		return
	}
	s.kafkaConsumer = consumer
}

func (s *Server) closeBackends() {
	if s.bridge != nil {
		s.bridge.Stop()
	}

	if s.relay != nil {
		s.relay.Stop()
	}

	if s.kafkaConsumer != nil {
		if err := s.kafkaConsumer.Stop(); err != nil {
			s.logger.Error("Error stopping Kafka consumer", "error", err)
		}
	}

	if s.kafkaProducer != nil {
		if err := s.kafkaProducer.Close(); err != nil {
			s.logger.Error("Error closing Kafka producer", "error", err)
		}
	}

	s.closeStorage()
}

func (s *Server) closeStorage() {
	if s.postgres == nil {
		return
	}

	if err := s.postgres.Close(); err != nil {
		s.logger.Error("Error closing storage database", "error", err)
	}
}

// setupRoutes configures all the routes of the shell
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	r := s.router

	r.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	// Session
	r.HandleFunc("/session", s.sessionHandler).Methods(http.MethodGet)
	r.Handle("/login", s.throttle.Middleware(http.HandlerFunc(s.loginHandler))).Methods(http.MethodPost)
	r.Handle("/admin/login", s.throttle.Middleware(http.HandlerFunc(s.adminLoginHandler))).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.logoutHandler).Methods(http.MethodPost)
	r.HandleFunc("/notifications", s.notificationsHandler).Methods(http.MethodGet)

	// Public pages
	r.HandleFunc("/compliance", s.complianceHandler).Methods(http.MethodGet)
	r.HandleFunc("/deals/trending", s.trendingHandler).Methods(http.MethodGet)
	r.HandleFunc("/couriers", s.couriersHandler).Methods(http.MethodGet)
	r.HandleFunc("/calculator", s.calculatorHandler).Methods(http.MethodPost)

	// Pages behind login
	r.Handle("/mailbox", s.private(s.mailboxHandler)).Methods(http.MethodGet)
	r.Handle("/mailbox/selection", s.private(s.selectPackagesHandler)).Methods(http.MethodPost)
	r.Handle("/mailbox/consolidate", s.private(s.consolidateHandler)).Methods(http.MethodPost)
	r.Handle("/account", s.private(s.accountHandler)).Methods(http.MethodGet)
	r.Handle("/account/topup", s.private(s.topupHandler)).Methods(http.MethodPost)
	r.Handle("/addresses", s.private(s.addressesHandler)).Methods(http.MethodGet)
	r.Handle("/addresses", s.private(s.createAddressHandler)).Methods(http.MethodPost)
	r.Handle("/addresses/{id}", s.private(s.updateAddressHandler)).Methods(http.MethodPut)
	r.Handle("/addresses/{id}", s.private(s.deleteAddressHandler)).Methods(http.MethodDelete)
	r.Handle("/shipments", s.private(s.shipmentsHandler)).Methods(http.MethodGet)
	r.Handle("/shipments/{id}", s.private(s.shipmentHandler)).Methods(http.MethodGet)
	r.Handle("/billing/invoices", s.private(s.invoicesHandler)).Methods(http.MethodGet)

	// Payment flow
	r.Handle("/payments/start", s.private(s.startPaymentHandler)).Methods(http.MethodPost)
	r.Handle("/payments/courier", s.private(s.chooseCourierHandler)).Methods(http.MethodPost)
	r.Handle("/payments/address", s.private(s.paymentAddressHandler)).Methods(http.MethodPost)
	r.Handle("/payments/pin", s.private(s.submitPinHandler)).Methods(http.MethodPost)
	r.Handle("/payments/close", s.private(s.closePaymentHandler)).Methods(http.MethodPost)
	r.Handle("/payments/state", s.private(s.paymentStateHandler)).Methods(http.MethodGet)
	r.Handle("/payment-success", s.private(s.paymentSuccessHandler)).Methods(http.MethodGet)
}

// Middleware for logging requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}

type ctxKey int

const privateKey ctxKey = iota

// private rejects requests while nobody is logged in
func (s *Server) private(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.sessions.LoggedIn() {
			s.respondWithError(w, http.StatusUnauthorized, "Please log in to continue")
			return
		}
		h(w, r.WithContext(context.WithValue(r.Context(), privateKey, true)))
	})
}

func isPrivate(r *http.Request) bool {
	v, _ := r.Context().Value(privateKey).(bool)
	return v
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
