// notechat - note-grounded assistant chat relay
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/notechat/internal/agent"
	"github.com/ashureev/notechat/internal/api"
	"github.com/ashureev/notechat/internal/chat"
	"github.com/ashureev/notechat/internal/config"
	"github.com/ashureev/notechat/internal/identity"
	"github.com/ashureev/notechat/internal/middleware"
	"github.com/ashureev/notechat/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, closeLog := config.SetupLogger(cfg.Log)
	slog.SetDefault(logger)

	err = run(cfg, logger)
	if closeErr := closeLog(); closeErr != nil {
		slog.Error("Failed to close log file", "error", closeErr)
	}
	if err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server",
		"port", cfg.Port,
		"note_store", cfg.NoteStore,
		"local_auth", cfg.LocalAuth(),
		"model", cfg.OpenAI.Model)

	// Initialize collaborators.
	notes, err := newNoteRepository(cfg)
	if err != nil {
		return fmt.Errorf("initialize note store: %w", err)
	}
	defer func() {
		if closeErr := notes.Close(); closeErr != nil {
			slog.Error("Failed to close note store", "error", closeErr)
		}
	}()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	err = notes.Ping(pingCtx)
	cancelPing()
	if err != nil {
		return fmt.Errorf("note store health check: %w", err)
	}
	slog.Info("Note store connected", "backend", cfg.NoteStore)

	verifier := newVerifier(cfg)

	backend, err := agent.NewOpenAIClient(agent.OpenAIConfig{
		APIKey:       cfg.OpenAI.APIKey,
		BaseURL:      cfg.OpenAI.BaseURL,
		PollInterval: cfg.OpenAI.RunPollInterval,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize assistants client: %w", err)
	}
	agents, err := agent.NewService(backend, agent.Config{
		AssistantName:     cfg.OpenAI.AssistantName,
		Model:             cfg.OpenAI.Model,
		MaxGroundingChars: cfg.Chat.MaxGroundingChars,
	})
	if err != nil {
		return fmt.Errorf("initialize agent service: %w", err)
	}

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize conversation logger: %w", err)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	limiter := chat.NewRateLimiter(cfg.Chat.MessagesPerMinute)
	defer limiter.Close()

	// Initialize handlers.
	sm := chat.NewSessionManager()
	relay := chat.NewRelay(verifier, notes, agents, chat.RelayConfig{
		EnforceNoteOwner: cfg.Chat.EnforceNoteOwner,
		Limiter:          limiter,
		ConversationLog:  conversationLogger,
	}, logger)
	wsHandler := chat.NewWebSocketHandler(relay, sm, chat.WebSocketConfig{
		OriginPatterns: cfg.AllowedOrigins,
		MaxFrameBytes:  cfg.Chat.MaxFrameBytes,
	}, logger)
	healthHandler := api.NewHealthHandler(notes, sm)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	healthHandler.RegisterHealth(r)

	// WebSocket endpoint.
	r.Get("/ws", wsHandler.ServeHTTP)

	// Websocket sessions are long-lived, so there is no write timeout.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...", "active_sessions", sm.Count())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are not tracked by Shutdown.
		sm.CloseAll("server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newNoteRepository(cfg *config.Config) (store.NoteRepository, error) {
	switch cfg.NoteStore {
	case config.StoreSQLite:
		return store.NewSQLite(cfg.DBPath)
	default:
		return store.NewPostgREST(cfg.Supabase.URL, cfg.Supabase.Key, cfg.Supabase.NotesTable)
	}
}

func newVerifier(cfg *config.Config) identity.Verifier {
	if cfg.LocalAuth() {
		slog.Info("Verifying tokens locally with the JWT secret")
		return identity.NewJWTVerifier([]byte(cfg.Supabase.JWTSecret))
	}
	slog.Info("Verifying tokens with the Supabase auth service")
	return identity.NewSupabaseVerifier(cfg.Supabase.URL, cfg.Supabase.Key)
}
