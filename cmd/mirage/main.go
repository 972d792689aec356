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

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"github.com/KorryKatti/Mirage/auth"
	"github.com/KorryKatti/Mirage/domain"
	"github.com/KorryKatti/Mirage/internal"
	"github.com/KorryKatti/Mirage/moderation"
	"github.com/KorryKatti/Mirage/observability"
	"github.com/KorryKatti/Mirage/registry"
	"github.com/KorryKatti/Mirage/repositories"
	"github.com/KorryKatti/Mirage/runtime"
	"github.com/KorryKatti/Mirage/runtime/workers"
	"github.com/KorryKatti/Mirage/search"
	"github.com/KorryKatti/Mirage/server"
	"github.com/KorryKatti/Mirage/services"
)

// Exit codes give the service manager a usable status.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const (
	defaultRoomName  = "#general"
	defaultRoomTopic = "Welcome to Mirage IRC"
)

func main() {
	// Thin wrapper so every defer in run() executes before the process exits.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mirage terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := internal.NewLogger(config.LogLevel)

	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(ctx, config, logger))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	userRepository := repositories.NewUserRepository(db)
	roomRepository := repositories.NewRoomRepository(db)
	checkpointStore := repositories.NewCheckpointStore(config.MessagesFile)

	// 3. Ephemeral log, warm-started from the checkpoint
	history := runtime.NewHistory(config.MaxMessages, config.MessageLifespan)
	entries, err := checkpointStore.Load()
	if err != nil {
		logger.Warn("checkpoint load failed, starting cold", "error", err)
	} else {
		history.Seed(entries)
		logger.Info("checkpoint restored", "messages", history.Len())
	}

	// 4. Room registry, seeded from durable rooms
	rooms := registry.New(config.MaxPublicRooms)
	durableRooms, err := roomRepository.ListRooms()
	if err != nil {
		return exitRuntime, fmt.Errorf("room listing failed: %w", err)
	}
	rooms.Seed(durableRooms)
	if err := ensureDefaultRoom(rooms, roomRepository, durableRooms); err != nil {
		return exitRuntime, err
	}

	// 5. Moderation, search and the dispatcher
	wordList, err := moderation.LoadEmbeddedWords()
	if err != nil {
		return exitRuntime, fmt.Errorf("word list loading failed: %w", err)
	}
	moderator, err := moderation.NewModerator(wordList.Words, charReplacement)
	if err != nil {
		return exitRuntime, fmt.Errorf("moderator build failed: %w", err)
	}
	logger.Info("moderation ready",
		"languages", wordList.Languages, "words", len(wordList.Words))

	index, err := search.NewInMemoryIndex(logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("search index failed: %w", err)
	}
	defer func() {
		logger.Info("Closing search index...")
		_ = index.Close()
	}()

	tokens := auth.NewTokenStore([]byte(config.TokenSecret), config.AuthTokenDuration)
	dispatcher := runtime.NewDispatcher(logger, rooms, history, moderator,
		config.DeliveryTimeout, config.MailboxCapacity)
	interpreter := runtime.NewInterpreter(logger, rooms, tokens,
		userRepository, roomRepository, dispatcher, index)

	// Rebuild the index from the retained log, then tap the live flow.
	for _, m := range history.Snapshot() {
		if err := index.Consume(m); err != nil {
			logger.Warn("index rebuild entry failed", "error", err)
		}
	}

	checkpointWorker := workers.NewCheckpointWorker(logger, history,
		checkpointStore, config.CheckpointInterval)
	dispatcher.AddSinks(index, checkpointWorker)

	// 6. Services
	authService := services.NewAuthService(logger, userRepository, tokens, rooms, defaultRoomName)
	chatService := services.NewChatService(logger, rooms, history, dispatcher,
		interpreter, index, roomRepository, config.MaxContentLen)

	monitor, err := observability.NewMonitor(int32(os.Getpid()))
	if err != nil {
		return exitRuntime, fmt.Errorf("self monitor failed: %w", err)
	}

	// 7. Context, signals, supervised workers
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := workers.NewSupervisor(logger).Add(
		workers.NewLivenessWorker(logger, tokens, rooms, dispatcher,
			config.SweepInterval, config.IdleTimeout),
		checkpointWorker,
		workers.NewSelfStatsWorker(logger, monitor, config.StatsInterval),
	)

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	// 8. HTTP server
	errChan := make(chan error, 1)
	srv := server.New(logger, authService, chatService, tokens, monitor, defaultRoomName)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 9. Wait for stop or error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 10. Graceful shutdown: stop accepting, flush workers, final checkpoint.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	sup.Stop()
	<-supDone
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

// ensureDefaultRoom guarantees the landing room exists on first boot.
// Seeding instead of Create keeps the member set empty; login joins do the
// populating.
func ensureDefaultRoom(rooms *registry.Registry, store *repositories.RoomRepository,
	existing []domain.Room) error {
	if _, ok := rooms.Get(defaultRoomName); ok {
		return nil
	}
	var nextID domain.RoomID = 1
	for _, r := range existing {
		if r.ID >= nextID {
			nextID = r.ID + 1
		}
	}
	room := domain.Room{
		ID:        nextID,
		Name:      defaultRoomName,
		Topic:     defaultRoomTopic,
		CreatedBy: "mirage",
		CreatedAt: time.Now().UTC(),
	}
	rooms.Seed([]domain.Room{room})
	if err := store.SaveRoom(room); err != nil {
		return fmt.Errorf("default room persist failed: %w", err)
	}
	return nil
}

func buildBadgerOpts(ctx context.Context, config internal.Config, logger *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	return options
}
