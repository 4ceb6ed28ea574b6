package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rsayer/miles-sim/internal/device"
	"github.com/rsayer/miles-sim/internal/httpapi"
	"github.com/rsayer/miles-sim/internal/hub"
	"github.com/rsayer/miles-sim/internal/miles"
	"github.com/rsayer/miles-sim/internal/settings"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	reg, err := miles.DefaultRegistry()
	if err != nil {
		log.Fatal("protocol registry", zap.Error(err))
	}

	cfg := device.Config{Tick: tickInterval(log)}

	storeFor := fileStoreFactory()
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := settings.OpenDB(dsn)
		if err != nil {
			log.Fatal("settings database", zap.Error(err))
		}
		storeFor = func(code string) settings.Store {
			return settings.NewGormStore(db, code)
		}
		log.Info("persisting settings to postgres")
	}

	ctx := context.Background()
	factory := func(ctx context.Context, code string) (*device.Device, error) {
		return device.New(ctx, code, reg, storeFor(code), cfg, log)
	}
	h := hub.NewHub(ctx, factory, log)

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, log)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Info("listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

// fileStoreFactory keeps one settings file per device code next to the
// default settings path.
func fileStoreFactory() func(code string) settings.Store {
	dir := filepath.Dir(settings.DefaultPath())
	return func(code string) settings.Store {
		return settings.NewFileStore(filepath.Join(dir, code+".json"))
	}
}

func tickInterval(log *zap.Logger) time.Duration {
	raw := os.Getenv("TICK_INTERVAL_MS")
	if raw == "" {
		return device.DefaultTick
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		log.Warn("ignoring invalid TICK_INTERVAL_MS", zap.String("value", raw))
		return device.DefaultTick
	}
	return time.Duration(ms) * time.Millisecond
}
