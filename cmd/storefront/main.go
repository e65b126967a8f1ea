package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jcmexdev/storefront-core/internal/cart"
	"github.com/jcmexdev/storefront-core/internal/cart/redisstore"
	"github.com/jcmexdev/storefront-core/internal/config"
	"github.com/jcmexdev/storefront-core/internal/httpx"
	"github.com/jcmexdev/storefront-core/internal/order"
	ordersqlite "github.com/jcmexdev/storefront-core/internal/order/sqlite"
	"github.com/jcmexdev/storefront-core/internal/payment"
	"github.com/jcmexdev/storefront-core/internal/pkg/telemetry"
	"github.com/jcmexdev/storefront-core/internal/stock"
)

func main() {
	telemetry.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "storefront-core"))
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var cartStore cart.Store
	if cfg.RedisAddr != "" {
		rs := redisstore.New(cfg.RedisAddr, cfg.CartTTL)
		defer rs.Close()
		cartStore = rs
	} else {
		slog.Warn("REDIS_ADDR not set, using in-memory cart store")
		cartStore = cart.NewMemoryStore()
	}

	var oracle stock.Oracle
	if cfg.StockBaseURL != "" {
		oracle = stock.NewHTTPOracle(cfg.StockBaseURL, cfg.StockTimeout)
	} else {
		slog.Warn("STOCK_BASE_URL not set, using seeded fake oracle")
		oracle = stock.NewFakeOracle(map[string]int{
			"prod_1": 15,
			"prod_2": 10,
			"prod_3": 0,
		})
	}

	orderStore, err := ordersqlite.Open(cfg.SQLitePath)
	if err != nil {
		slog.Error("failed to open order store", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer orderStore.Close()

	ledger := cart.NewLedger(cartStore, oracle)
	lifecycle := order.NewLifecycle(orderStore, ledger, cfg.Pricing)
	gateways := payment.NewRegistry(
		payment.NewPayPal(cfg.PayPalClientID),
		payment.NewEsewa(cfg.EsewaMerchantCode, cfg.EsewaSuccessURL, cfg.EsewaFailureURL),
		payment.NewCash(),
	)

	handler := httpx.NewHandler(ledger, lifecycle, gateways, cfg.Pricing)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown error", "error", err)
		}
	}()

	slog.Info("storefront core running", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
