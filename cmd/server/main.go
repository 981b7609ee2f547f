package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"codenow/internal/config"
	"codenow/internal/jobs"
	"codenow/internal/mirror"
	"codenow/internal/models"
	"codenow/internal/routers"
	"codenow/internal/session"
	"codenow/internal/utils"
)

var (
	listenAndServe = func(srv *http.Server) error { return srv.ListenAndServe() }
	exit           = os.Exit
	exitFunc       = defaultExit
)

func main() {
	if err := run(context.Background()); err != nil {
		exitFunc(err)
	}
}

func defaultExit(err error) {
	log.Printf("codenow: %v", err)
	exit(1)
}

func run(ctx context.Context) error {
	logger := utils.NewLogger()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger.Info("Configuration loaded",
		zap.String("port", cfg.Port),
		zap.Int("maxEditors", cfg.MaxEditors),
		zap.Strings("corsOrigins", cfg.CORSOrigins),
		zap.String("defaultLanguage", string(cfg.DefaultLanguage)),
		zap.Duration("cursorTimeout", cfg.CursorTimeout),
		zap.Bool("promoteViewers", cfg.PromoteViewers))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := session.Options{
		MaxEditors:     cfg.MaxEditors,
		PythonCode:     cfg.PythonCode,
		JavaScriptCode: cfg.JavaScriptCode,
		Language:       cfg.DefaultLanguage,
		CursorColor:    cfg.CursorColor,
		CursorTimeout:  cfg.CursorTimeout,
		MaxBufferBytes: cfg.MaxBufferBytes,
		PromoteViewers: cfg.PromoteViewers,
		Logger:         logger,
	}
	if m := startMirror(ctx, cfg, logger); m != nil {
		opts.Sink = m
	}

	sess := session.New(opts)
	defer sess.Close()

	reporter := jobs.NewOccupancyReporter(sess, cfg.OccupancySchedule, logger)
	if err := reporter.Start(); err != nil {
		return err
	}
	defer reporter.Stop()

	return serve(ctx, cfg.Addr(), routers.New(logger, sess, cfg), logger)
}

// startMirror connects to Redis when configured. An unreachable Redis only
// disables the mirror; the relay itself does not depend on it.
func startMirror(ctx context.Context, cfg *config.Config, logger *zap.Logger) *mirror.RedisMirror {
	if cfg.RedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unreachable, presence mirror disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = rdb.Close()
		return nil
	}

	m := mirror.NewRedisMirror(rdb, cfg.PresenceChannel, logger)
	go m.Run(ctx)
	go func() {
		err := m.Watch(ctx, func(e models.PresenceEvent) {
			logger.Debug("presence event from peer instance",
				zap.String("instance", e.InstanceID),
				zap.String("type", e.Type),
				zap.Int("currentEditors", e.CurrentEditors))
		})
		if err != nil {
			logger.Warn("presence watch stopped", zap.Error(err))
		}
		_ = rdb.Close()
	}()
	logger.Info("Presence mirror enabled",
		zap.String("addr", cfg.RedisAddr),
		zap.String("channel", cfg.PresenceChannel),
		zap.String("instance", m.GetInstanceID()))
	return m
}

func serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	// no write timeout: websocket connections are long-lived
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("codenow listening", zap.String("addr", addr))
		errCh <- listenAndServe(server)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("codenow shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("codenow exited")
	return nil
}
