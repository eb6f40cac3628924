// Package metrics exposes Prometheus counters for the bot.
//
//   - polyneko_orders_total{mode,result}    orders submitted (mode: sim|live, result: filled|failed)
//   - polyneko_trades_total{symbol,kind}    fills appended to positions (kind: entry|hedge|add)
//   - polyneko_signals_total{symbol,result} entry evaluations (result: signal|rejected)
//   - polyneko_settlements_total{outcome}   settled positions (outcome: win|loss)
//   - polyneko_session_pnl_usd              cumulative settled P&L
//   - polyneko_open_positions               positions carrying cost in the current slot
//   - polyneko_feed_connected               1 while the book stream is up
//
// Served at /metrics when METRICS_ADDR is set.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	Registry = prometheus.NewRegistry()

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyneko_orders_total",
			Help: "Orders submitted",
		},
		[]string{"mode", "result"},
	)

	Trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyneko_trades_total",
			Help: "Fills appended to positions",
		},
		[]string{"symbol", "kind"},
	)

	Signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyneko_signals_total",
			Help: "Entry evaluations by result",
		},
		[]string{"symbol", "result"},
	)

	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyneko_settlements_total",
			Help: "Settled positions by outcome",
		},
		[]string{"outcome"},
	)

	SessionPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "polyneko_session_pnl_usd",
			Help: "Cumulative settled P&L in USD",
		},
	)

	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "polyneko_open_positions",
			Help: "Positions with cost in the current slot",
		},
	)

	FeedConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "polyneko_feed_connected",
			Help: "1 while the order-book stream is connected",
		},
	)
)

func init() {
	Registry.MustRegister(Orders, Trades, Signals, Settlements)
	Registry.MustRegister(SessionPnL, OpenPositions, FeedConnected)
	Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// ObserveOrder counts one submission
func ObserveOrder(sim, filled bool) {
	mode := "live"
	if sim {
		mode = "sim"
	}
	result := "failed"
	if filled {
		result = "filled"
	}
	Orders.WithLabelValues(mode, result).Inc()
}

// ObserveSettlement counts a settled position and moves the P&L gauge
func ObserveSettlement(win bool, pnl decimal.Decimal) {
	outcome := "loss"
	if win {
		outcome = "win"
	}
	Settlements.WithLabelValues(outcome).Inc()
	SessionPnL.Add(pnl.InexactFloat64())
}

// SetFeedConnected flips the feed gauge
func SetFeedConnected(up bool) {
	if up {
		FeedConnected.Set(1)
		return
	}
	FeedConnected.Set(0)
}

// Handler serves the registry plus a health probe
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	return mux
}

// Serve runs the metrics endpoint until ctx is cancelled
func Serve(ctx context.Context, addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("📈 Metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
