package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/auth"
	"tradingcore/src/execution"
	"tradingcore/src/handler"
	"tradingcore/src/limits"
	"tradingcore/src/portfolio"
	"tradingcore/src/pricing"
	"tradingcore/src/risk"
	"tradingcore/src/trading"
)

func StartServer(port string) {
	cfg := limits.GetConfig()
	execCfg := execution.GetConfig()

	prices := pricing.NewRestSource(pricing.GetConfig())

	// Paper mode simulates fills locally; live mode signs orders against
	// the exchange API.
	var adapter execution.Adapter
	if cfg.PaperTrading {
		adapter = execution.NewSimulatedAdapter(cfg.FeeRateDecimal(), "EUR")
	} else {
		adapter = execution.NewLiveAdapter(execCfg, execCfg.APIKey, execCfg.APISecret)
	}

	pool := execution.NewPool(execution.NewEngine(adapter, prices), execCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	tradingSvc := trading.NewService(cfg, prices, pool)
	portfolioSvc := portfolio.NewService()
	monitor := risk.NewMonitor(cfg, nil)

	// Router with middleware
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Post("/orders", handler.CreateOrderHandler(tradingSvc))
		r.Post("/orders/quick", handler.QuickTradeHandler(tradingSvc))
		r.Get("/orders/{orderID}", handler.GetOrderHandler(tradingSvc))
		r.Put("/orders/{orderID}", handler.UpdateOrderHandler(tradingSvc))
		r.Post("/orders/{orderID}/cancel", handler.CancelOrderHandler(tradingSvc))

		r.Post("/portfolios", handler.CreatePortfolioHandler(portfolioSvc))
		r.Get("/portfolios", handler.ListPortfoliosHandler(portfolioSvc))
		r.Get("/portfolios/{portfolioID}", handler.GetPortfolioHandler(portfolioSvc))
		r.Delete("/portfolios/{portfolioID}", handler.DeletePortfolioHandler(portfolioSvc))
		r.Get("/portfolios/{portfolioID}/summary", handler.PortfolioSummaryHandler(portfolioSvc))
		r.Get("/portfolios/{portfolioID}/positions", handler.PortfolioPositionsHandler(portfolioSvc))
		r.Get("/portfolios/{portfolioID}/orders", handler.SearchOrdersHandler(tradingSvc))
		r.Get("/portfolios/{portfolioID}/stats", handler.TradingStatsHandler(tradingSvc))
		r.Get("/portfolios/{portfolioID}/risk", handler.RiskMetricsHandler(monitor))
		r.Post("/portfolios/{portfolioID}/risk/check", handler.CheckRiskLimitsHandler(monitor))
		r.Put("/portfolios/{portfolioID}/stop-loss", handler.SetStopLossHandler(monitor))

		r.Get("/risk/alerts", handler.ActiveAlertsHandler(monitor))
		r.Post("/risk/alerts/{alertID}/ack", handler.AcknowledgeAlertHandler(monitor))
		r.Post("/risk/alerts/{alertID}/resolve", handler.ResolveAlertHandler(monitor))

		r.Get("/assets", handler.DefaultSearchAssetsHandler())
	})

	// Graceful server
	// Server setup
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	cancel()
	pool.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
