// Command echobattler runs one 2-8 player auto-battler session: a TCP frame
// server driving the session orchestrator, plus an admin/ops HTTP surface
// for liveness, readiness, stats, and spectating.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"echobattler/internal/catalog"
	"echobattler/internal/config"
	httpapi "echobattler/internal/http"
	"echobattler/internal/logging"
	"echobattler/internal/replay"
	"echobattler/internal/session"
	"echobattler/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.L().Fatal("invalid configuration", logging.Error(err))
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logging.L().Fatal("failed to initialise logger", logging.Error(err))
	}

	srv, err := transport.NewServer(cfg.Address, cfg.MaxClients, cfg.AckTimeout, cfg.AckMaxRetries, logger)
	if err != nil {
		logger.Fatal("failed to start frame server listener", logging.Error(err), logging.String("address", cfg.Address))
	}

	sess := session.New(config.DefaultGameRules(), catalog.Default(), srv, logger, time.Now().UnixNano())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go srv.Serve(ctx)
	go srv.RunAckSweeper(ctx, cfg.AckTimeout/2)

	writer, _, err := replay.NewWriter(cfg.ReplayDir, cfg.SessionID, nil)
	if err != nil {
		logger.Warn("replay writer unavailable", logging.Error(err))
	}
	var dumper httpapi.ReplayDumper
	if writer != nil {
		dumper = httpapi.ReplayDumperFunc(func(ctx context.Context) (string, error) {
			if err := writer.Flush(); err != nil {
				return "", err
			}
			return writer.Directory(), nil
		})
		cleaner := replay.NewCleaner(cfg.ReplayDir, replay.RetentionPolicy{MaxMatches: 20, MaxAge: 7 * 24 * time.Hour}, logger)
		go cleaner.Run(ctx, time.Hour)
	}

	var limiter httpapi.RateLimiter
	if cfg.AdminToken != "" {
		limiter = httpapi.NewSlidingWindowLimiter(time.Minute, 3, nil)
	}

	mux := http.NewServeMux()
	httpapi.NewHandlerSet(httpapi.Options{
		Logger:      logger,
		Session:     sess,
		SessionID:   cfg.SessionID,
		Replay:      dumper,
		AdminToken:  cfg.AdminToken,
		RateLimiter: limiter,
	}).Register(mux)

	adminServer := &http.Server{Addr: cfg.AdminAddr, Handler: logging.HTTPTraceMiddleware(logger)(mux)}
	go func() {
		logger.Info("admin/ops surface listening", logging.String("address", listenerURL(cfg.AdminAddr, false)))
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin/ops server terminated", logging.Error(err))
		}
	}()

	logger.Info("session listening", logging.String("address", listenerURL(cfg.Address, false)), logging.String("session_id", cfg.SessionID))

	go sess.Run(ctx, cfg.TickHz)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = adminServer.Shutdown(shutdownCtx)
	if writer != nil {
		_ = writer.Close()
	}
	srv.Close()
}
