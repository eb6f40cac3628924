package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyneko/internal/config"
	"github.com/web3guy0/polyneko/storage"
)

// report prints the persisted performance history
func main() {
	limit := flag.Int("n", 20, "number of recent settlements to list")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	db, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to open database")
	}
	defer db.Close()

	stats, err := db.Stats()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load stats")
	}

	fmt.Printf("📊 PERFORMANCE REPORT - %d trades, %d settlements\n\n", stats.TotalTrades, stats.TotalSettlements)
	fmt.Printf("  Win rate:  %.1f%% (%d/%d)\n", stats.WinRate*100, stats.Wins, stats.TotalSettlements)
	fmt.Printf("  P&L:       %s on $%s (ROI %.1f%%)\n", signed(stats.TotalPnL), stats.TotalCost.StringFixed(2), stats.ROI*100)
	fmt.Printf("  Today:     %d settled, %s\n", stats.TodaySettlements, signed(stats.TodayPnL))

	if len(stats.BySymbol) > 0 {
		fmt.Println("\n═══════════════════════════════════════════════")
		fmt.Println("│ SYMBOL │ WINS │ SETTLED │ P&L")
		fmt.Println("═══════════════════════════════════════════════")
		for _, s := range stats.BySymbol {
			fmt.Printf("│ %-6s │ %4d │ %7d │ %s\n", s.Symbol, s.Wins, s.Settlements, signed(s.PnL))
		}
	}

	hours, err := db.PerformanceByHour()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load hourly stats")
	}
	if len(hours) > 0 {
		fmt.Println("\n═══════════════════════════════════════════════")
		fmt.Println("│ HOUR (UTC) │ WIN%  │ N    │ P&L      │ AVG")
		fmt.Println("═══════════════════════════════════════════════")
		for _, h := range hours {
			fmt.Printf("│ %02d:00      │ %4.0f%% │ %4d │ %-8s │ %s\n",
				h.Hour, h.WinRate()*100, h.Settlements, signed(h.PnL), signed(h.AvgPnL))
		}
	}

	recent, err := db.RecentSettlements(*limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settlements")
	}
	if len(recent) > 0 {
		fmt.Println("\n═══════════════════════════════════════════════════════════════════════")
		fmt.Println("│ TIME        │ SYMBOL │ BET │ WINNER │ COST     │ P&L      │ HEDGES")
		fmt.Println("═══════════════════════════════════════════════════════════════════════")
		for _, s := range recent {
			cost := s.YesCost.Add(s.NoCost)
			fmt.Printf("│ %s │ %-6s │ %-3s │ %-6s │ $%-7s │ %-8s │ %d\n",
				s.Timestamp.UTC().Format("Jan 2 15:04"), s.Symbol, s.InitialSide, s.Winner,
				cost.StringFixed(2), signed(s.PnL), s.HedgeCount)
		}
	}
}

func signed(v decimal.Decimal) string {
	if v.IsNegative() {
		return "-$" + v.Abs().StringFixed(2)
	}
	return "+$" + v.StringFixed(2)
}
