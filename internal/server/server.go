package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relaykit/aigateway/internal/config"
	"github.com/relaykit/aigateway/internal/dispatch"
	"github.com/relaykit/aigateway/internal/executor"
	"github.com/relaykit/aigateway/internal/handlers"
	"github.com/relaykit/aigateway/internal/middleware"
	"github.com/relaykit/aigateway/internal/router"
	"github.com/relaykit/aigateway/internal/translator"
)

type Server struct {
	config  *config.Manager
	router  *router.Router
	engine  *dispatch.Engine
	watcher *config.Watcher
	logger  *slog.Logger
	server  *http.Server
}

func New(configManager *config.Manager, logger *slog.Logger) *Server {
	r := router.New(logger)
	engine := dispatch.New(r, translator.New(), executor.NewRegistry(), logger)

	cfg := configManager.Get()
	r.UpdateFromConfig(providerEntries(cfg), cfg.Routing.Strategy)

	watcher, err := config.NewWatcher(configManager, logger, func(cfg *config.Config) {
		r.UpdateFromConfig(providerEntries(cfg), cfg.Routing.Strategy)
	})
	if err != nil {
		logger.Warn("config watcher unavailable, hot-reload disabled", "error", err)
	}

	return &Server{
		config:  configManager,
		router:  r,
		engine:  engine,
		watcher: watcher,
		logger:  logger,
	}
}

// providerEntries flattens the four per-format config arrays into the shape
// router.UpdateFromConfig expects.
func providerEntries(cfg *config.Config) map[router.Format][]router.ProviderKeyEntry {
	return map[router.Format][]router.ProviderKeyEntry{
		router.FormatClaude:       cfg.ClaudeAPIKey,
		router.FormatOpenAI:       cfg.OpenAIAPIKey,
		router.FormatGemini:       cfg.GeminiAPIKey,
		router.FormatOpenAICompat: cfg.OpenAICompatibility,
	}
}

func (s *Server) Start() error {
	cfg := s.config.Get()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	mux := s.setupRoutes()

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	if s.watcher != nil {
		go s.watcher.Start()
	}

	s.logger.Info("Starting server", "address", addr, "tls", cfg.TLS.Enable)

	go func() {
		var err error
		if cfg.TLS.Enable {
			err = s.server.ListenAndServeTLS(cfg.TLS.Cert, cfg.TLS.Key)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	s.logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if s.watcher != nil {
		s.watcher.Stop()
	}

	s.logger.Info("Server exited")
	return nil
}

func (s *Server) Stop() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	chatHandler := handlers.NewChatHandler(s.config, s.engine, s.logger)
	messagesHandler := handlers.NewMessagesHandler(s.config, s.engine, s.logger)
	responsesHandler := handlers.NewResponsesHandler(s.config, s.engine, s.logger)
	modelsHandler := handlers.NewModelsHandler(s.router, s.logger)
	healthHandler := handlers.NewHealthHandler(s.logger)

	middlewareSet := middleware.NewMiddlewareSet(s.config, s.logger)

	mux.Handle("/health", middlewareSet.HealthChain().Handler(healthHandler))
	mux.Handle("/v1/chat/completions", middlewareSet.DefaultChain().Handler(chatHandler))
	mux.Handle("/v1/messages", middlewareSet.DefaultChain().Handler(messagesHandler))
	mux.Handle("/v1/responses", middlewareSet.DefaultChain().Handler(responsesHandler))
	mux.Handle("/v1/models", middlewareSet.DefaultChain().Handler(modelsHandler))

	return mux
}
