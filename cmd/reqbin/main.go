package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/3xpluto/go-reqbin/internal/config"
	"github.com/3xpluto/go-reqbin/internal/logging"
	"github.com/3xpluto/go-reqbin/internal/ratelimit"
	"github.com/3xpluto/go-reqbin/internal/server"
)

func main() {
	var configPath string
	var validateOnly bool
	flag.StringVar(&configPath, "config", "./config/config.example.yaml", "path to yaml config")
	flag.BoolVar(&validateOnly, "validate-config", false, "validate config and exit")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logging.New("info").Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Level)
	if validateOnly {
		log.Info("config ok")
		return
	}

	// ---- Rate limiter backend
	limiter, backend := newLimiter(cfg, log)
	if limiter != nil {
		defer limiter.Close()
	}

	// ---- Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	h, err := server.New(cfg, server.Deps{
		Log:      log,
		Registry: reg,
		Limiter:  limiter,
		Backend:  backend,
		AdminKey: os.Getenv("REQBIN_ADMIN_KEY"),
	})
	if err != nil {
		log.Error("failed to build handler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// ---- Server
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadHeaderTimeout: seconds(cfg.Server.ReadHeaderTimeoutSeconds),
		ReadTimeout:       seconds(cfg.Server.ReadTimeoutSeconds),
		WriteTimeout:      seconds(cfg.Server.WriteTimeoutSeconds),
		IdleTimeout:       seconds(cfg.Server.IdleTimeoutSeconds),
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Info("reqbin listening", slog.String("addr", cfg.Server.Addr), slog.String("rate_backend", backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown. In-flight delays and streams stop early because
	// their request contexts are cancelled.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), seconds(cfg.Server.ShutdownTimeoutSeconds))
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("shutdown incomplete", slog.String("error", err.Error()))
	}
	log.Info("shutdown complete")
}

// newLimiter picks the rate limiter backend. An unreachable Redis falls back
// to the in-memory limiter rather than refusing to start.
func newLimiter(cfg *config.Config, log *slog.Logger) (ratelimit.Limiter, string) {
	rl := cfg.RateLimit
	if !rl.Enabled && !anyRouteLimited(cfg) {
		return nil, "none"
	}
	memory := func() ratelimit.Limiter {
		return ratelimit.NewMemoryLimiter(seconds(rl.Memory.TTLSeconds), seconds(rl.Memory.CleanupSeconds))
	}

	if rl.Backend != "redis" {
		return memory(), "memory"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     rl.Redis.Addr,
		Password: rl.Redis.Password,
		DB:       rl.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable; falling back to memory limiter", slog.String("error", err.Error()))
		_ = rdb.Close()
		return memory(), "memory"
	}
	return ratelimit.NewRedisLimiter(rdb), "redis"
}

func anyRouteLimited(cfg *config.Config) bool {
	for _, rc := range cfg.Routes {
		if rc.RateLimit.Enabled != nil && *rc.RateLimit.Enabled {
			return true
		}
	}
	return false
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
