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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"

	"signalbridge/src/controller"
	"signalbridge/src/handler"
	"signalbridge/src/repository"
	"signalbridge/src/utils"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Controller *controller.TradeController
	Trades     *repository.TradeRepository
	Settings   *repository.SettingsRepository
	Activity   *repository.ActivityLogRepository
	Clock      utils.Clock
}

// NewRouter builds the route table. Split out of StartServer so tests can
// mount it without a listener.
func NewRouter(deps Deps) *chi.Mux {
	handlerCfg := handler.GetConfig()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhook", handler.WebhookHandler(handlerCfg, deps.Controller))

	r.Route("/api", func(r chi.Router) {
		r.Post("/trade", handler.TradeHandler(deps.Controller))
		r.Post("/limit-order", handler.LimitOrderHandler(deps.Controller))
		r.Post("/twap-order", handler.TwapOrderHandler(deps.Controller))
		r.Post("/scale-order", handler.ScaleOrderHandler(deps.Controller))
		r.Post("/twap-cancel", handler.TwapCancelHandler(deps.Controller))
		r.Post("/close", handler.CloseHandler(deps.Controller))
		r.Post("/close-all", handler.CloseAllHandler(deps.Controller))
		r.Get("/open-orders", handler.OpenOrdersHandler(deps.Controller))
		r.Post("/cancel-order", handler.CancelOrderHandler(deps.Controller))
		r.Post("/modify-order", handler.ModifyOrderHandler(deps.Controller))
		r.Post("/bot/toggle", handler.BotToggleHandler(deps.Settings))

		r.Get("/account", handler.AccountHandler(deps.Controller))
		r.Get("/trades", handler.TradesHandler(deps.Trades))
		r.Get("/stats/daily", handler.DailyStatsHandler(deps.Trades, deps.Clock))
		r.Get("/activity", handler.ActivityHandler(deps.Activity))

		r.Get("/settings", handler.GetSettingsHandler(deps.Settings))
		r.Post("/settings", handler.UpdateSettingsHandler(deps.Settings))

		r.Get("/status", handler.StatusHandler(deps.Settings, deps.Controller))
	})

	return r
}

func StartServer(port string, deps Deps) {
	r := NewRouter(deps)

	// Graceful server
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
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
