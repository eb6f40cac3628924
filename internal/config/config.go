package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the bot
type Config struct {
	// Mode
	DryRun bool
	Debug  bool

	// Markets
	Symbols []string

	// Endpoints
	GammaURL   string
	CLOBURL    string
	WSURL      string
	BinanceURL string

	// CLOB Credentials
	CLOBApiKey     string
	CLOBApiSecret  string
	CLOBPassphrase string

	// Wallet
	WalletPrivateKey string
	FunderAddress    string // Address that holds funds (may differ from signing key)
	SignatureType    int    // 0=EOA, 1=Magic/Email, 2=Proxy

	// Telegram (optional)
	TelegramToken  string
	TelegramChatID int64

	// Storage / metrics
	DatabasePath string
	MetricsAddr  string // empty = no /metrics endpoint

	// Scheduling
	WorkerCount      int
	SweepInterval    time.Duration
	SlotPollInterval time.Duration
	StatusInterval   time.Duration
	SettlementGrace  time.Duration

	Sizing   SizingConfig
	Strategy StrategyConfig
	Risk     RiskConfig
}

// SizingConfig controls notional per order kind
type SizingConfig struct {
	BetSize     decimal.Decimal // base entry notional (USD)
	MaxPosition decimal.Decimal // entry + adds cap per slot/symbol
	TrailSize   float64         // hedge base = TrailSize × BetSize

	AddWinnerSize float64 // add = AddWinnerSize × BetSize

	HighConfidenceMultiplier float64
	StreakBonus              float64
	MaxStreakBonus           float64
	LossSizeFactor           float64 // applied while consecutive losses > 0
}

// StrategyConfig drives the entry filters, confidence and triggers
type StrategyConfig struct {
	SignalCooldown time.Duration

	// Reference data
	CandleLimit    int
	HTFCandleLimit int
	AnalysisTTL    time.Duration
	HTFTTL         time.Duration
	SpotTTL        time.Duration

	// Momentum / volume
	MomentumEnabled bool
	MomentumPeriod  int
	MinMomentum     float64 // percent
	VolumeEnabled   bool
	MinVolumeRatio  float64
	VolumeLookback  int
	MaxSpread       float64

	// RSI / Stochastic
	RSIEnabled      bool
	RSIPeriod       int
	RSIOverbought   float64
	RSIOversold     float64
	StochEnabled    bool
	StochOverbought float64
	StochOversold   float64

	MACDEnabled bool

	// ADX
	ADXEnabled     bool
	ADXPeriod      int
	ADXMinStrength float64
	ADXStrong      float64

	DivergenceEnabled  bool
	BBEnabled          bool
	BBSqueezeThreshold float64

	// Filters
	HTFFilterEnabled     bool
	HourFilterEnabled    bool
	MinHourWinRate       float64
	MinHourSamples       int
	SessionFilterEnabled bool
	SessionStartHour     int // UTC, inclusive
	SessionEndHour       int // UTC, exclusive

	// Confidence
	MinConfidence  float64
	HighConfidence float64

	// Hedge
	MaxHedges          int
	HedgeTriggerEarly  float64 // > 7 min left
	HedgeTriggerMid    float64 // 3-7 min left
	HedgeTriggerLate   float64 // < 3 min left
	ProgressiveTrigger []float64
	MinMinutesForHedge float64
	HedgeConfirm       time.Duration
	HedgeRequireVolume bool

	// Add-to-winner
	AddWinnerEnabled  bool
	MaxAdds           int
	AddMinMinutes     float64
	AddMaxMinutes     float64
	AddMinDistancePct float64
	AddMinTokenPrice  float64
	AddConfirm        time.Duration
}

// RiskConfig controls the loss cooldown
type RiskConfig struct {
	MaxConsecutiveLosses int
	LossCooldown         time.Duration
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DryRun:  true,
		Symbols: []string{"BTC", "ETH", "SOL", "XRP"},

		GammaURL:   "https://gamma-api.polymarket.com",
		CLOBURL:    "https://clob.polymarket.com",
		WSURL:      "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		BinanceURL: "https://api.binance.com",

		DatabasePath: "data/polyneko.db",

		WorkerCount:      4,
		SweepInterval:    2 * time.Second,
		SlotPollInterval: 5 * time.Second,
		StatusInterval:   60 * time.Second,
		SettlementGrace:  5 * time.Second,

		Sizing: SizingConfig{
			BetSize:                  decimal.NewFromInt(25),
			MaxPosition:              decimal.NewFromInt(200),
			TrailSize:                0.5,
			AddWinnerSize:            0.5,
			HighConfidenceMultiplier: 1.5,
			StreakBonus:              0.1,
			MaxStreakBonus:           0.5,
			LossSizeFactor:           0.5,
		},

		Strategy: StrategyConfig{
			SignalCooldown: 30 * time.Second,

			CandleLimit:    60,
			HTFCandleLimit: 30,
			AnalysisTTL:    10 * time.Second,
			HTFTTL:         30 * time.Second,
			SpotTTL:        2 * time.Second,

			MomentumEnabled: true,
			MomentumPeriod:  5,
			MinMomentum:     0.05,
			VolumeEnabled:   true,
			MinVolumeRatio:  0.8,
			VolumeLookback:  20,
			MaxSpread:       0.10,

			RSIEnabled:      true,
			RSIPeriod:       14,
			RSIOverbought:   70,
			RSIOversold:     30,
			StochEnabled:    true,
			StochOverbought: 80,
			StochOversold:   20,

			MACDEnabled: true,

			ADXEnabled:     true,
			ADXPeriod:      14,
			ADXMinStrength: 20,
			ADXStrong:      30,

			DivergenceEnabled:  true,
			BBEnabled:          true,
			BBSqueezeThreshold: 0.02,

			HTFFilterEnabled: true,
			MinHourWinRate:   0.45,
			MinHourSamples:   10,
			SessionStartHour: 0,
			SessionEndHour:   24,

			MinConfidence:  0.5,
			HighConfidence: 0.75,

			MaxHedges:          3,
			HedgeTriggerEarly:  0.10,
			HedgeTriggerMid:    0.08,
			HedgeTriggerLate:   0.06,
			ProgressiveTrigger: []float64{0.10, 0.15, 0.20},
			MinMinutesForHedge: 1,
			HedgeConfirm:       5 * time.Second,

			AddWinnerEnabled:  true,
			MaxAdds:           2,
			AddMinMinutes:     2,
			AddMaxMinutes:     10,
			AddMinDistancePct: 0.05,
			AddMinTokenPrice:  0.60,
			AddConfirm:        10 * time.Second,
		},

		Risk: RiskConfig{
			MaxConsecutiveLosses: 3,
			LossCooldown:         15 * time.Minute,
		},
	}
}

// Load loads configuration from .env and environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	// Mode
	cfg.DryRun = getEnvBool("DRY_RUN", cfg.DryRun)
	cfg.Debug = getEnvBool("DEBUG", cfg.Debug)
	cfg.Symbols = getEnvList("SYMBOLS", cfg.Symbols)

	// Endpoints
	cfg.GammaURL = getEnv("POLYMARKET_API_URL", cfg.GammaURL)
	cfg.CLOBURL = getEnv("POLYMARKET_CLOB_URL", cfg.CLOBURL)
	cfg.WSURL = getEnv("POLYMARKET_WS_URL", cfg.WSURL)
	cfg.BinanceURL = getEnv("BINANCE_API_URL", cfg.BinanceURL)

	// CLOB Credentials
	cfg.CLOBApiKey = os.Getenv("CLOB_API_KEY")
	cfg.CLOBApiSecret = os.Getenv("CLOB_API_SECRET")
	cfg.CLOBPassphrase = os.Getenv("CLOB_PASSPHRASE")

	// Wallet
	cfg.WalletPrivateKey = os.Getenv("WALLET_PRIVATE_KEY")
	cfg.FunderAddress = os.Getenv("FUNDER_ADDRESS")
	cfg.SignatureType = getEnvInt("SIGNATURE_TYPE", cfg.SignatureType)

	// Telegram
	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	// Storage / metrics
	cfg.DatabasePath = getEnv("DATABASE_PATH", cfg.DatabasePath)
	cfg.MetricsAddr = getEnv("METRICS_ADDR", cfg.MetricsAddr)

	// Scheduling
	cfg.WorkerCount = getEnvInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.SlotPollInterval = getEnvDuration("SLOT_POLL_INTERVAL", cfg.SlotPollInterval)
	cfg.StatusInterval = getEnvDuration("STATUS_INTERVAL", cfg.StatusInterval)
	cfg.SettlementGrace = getEnvDuration("SETTLEMENT_GRACE", cfg.SettlementGrace)

	// Sizing
	sz := &cfg.Sizing
	sz.BetSize = getEnvDecimal("BET_SIZE", sz.BetSize)
	sz.MaxPosition = getEnvDecimal("MAX_POSITION", sz.MaxPosition)
	sz.TrailSize = getEnvFloat("TRAIL_SIZE", sz.TrailSize)
	sz.AddWinnerSize = getEnvFloat("ADD_WINNER_SIZE", sz.AddWinnerSize)
	sz.HighConfidenceMultiplier = getEnvFloat("HIGH_CONFIDENCE_MULTIPLIER", sz.HighConfidenceMultiplier)
	sz.StreakBonus = getEnvFloat("STREAK_BONUS", sz.StreakBonus)
	sz.MaxStreakBonus = getEnvFloat("MAX_STREAK_BONUS", sz.MaxStreakBonus)
	sz.LossSizeFactor = getEnvFloat("LOSS_SIZE_FACTOR", sz.LossSizeFactor)

	// Strategy
	st := &cfg.Strategy
	st.SignalCooldown = getEnvSeconds("SIGNAL_COOLDOWN_SECONDS", st.SignalCooldown)
	st.CandleLimit = getEnvInt("CANDLE_LIMIT", st.CandleLimit)
	st.HTFCandleLimit = getEnvInt("HTF_CANDLE_LIMIT", st.HTFCandleLimit)

	st.MomentumEnabled = getEnvBool("MOMENTUM_ENABLED", st.MomentumEnabled)
	st.MomentumPeriod = getEnvInt("MOMENTUM_PERIOD", st.MomentumPeriod)
	st.MinMomentum = getEnvFloat("MIN_MOMENTUM", st.MinMomentum)
	st.VolumeEnabled = getEnvBool("VOLUME_ENABLED", st.VolumeEnabled)
	st.MinVolumeRatio = getEnvFloat("MIN_VOLUME_RATIO", st.MinVolumeRatio)
	st.VolumeLookback = getEnvInt("VOLUME_LOOKBACK", st.VolumeLookback)
	st.MaxSpread = getEnvFloat("MAX_SPREAD", st.MaxSpread)

	st.RSIEnabled = getEnvBool("RSI_ENABLED", st.RSIEnabled)
	st.RSIPeriod = getEnvInt("RSI_PERIOD", st.RSIPeriod)
	st.RSIOverbought = getEnvFloat("RSI_OVERBOUGHT", st.RSIOverbought)
	st.RSIOversold = getEnvFloat("RSI_OVERSOLD", st.RSIOversold)
	st.StochEnabled = getEnvBool("STOCH_ENABLED", st.StochEnabled)
	st.StochOverbought = getEnvFloat("STOCH_OVERBOUGHT", st.StochOverbought)
	st.StochOversold = getEnvFloat("STOCH_OVERSOLD", st.StochOversold)
	st.MACDEnabled = getEnvBool("MACD_ENABLED", st.MACDEnabled)

	st.ADXEnabled = getEnvBool("ADX_ENABLED", st.ADXEnabled)
	st.ADXPeriod = getEnvInt("ADX_PERIOD", st.ADXPeriod)
	st.ADXMinStrength = getEnvFloat("ADX_MIN_STRENGTH", st.ADXMinStrength)
	st.ADXStrong = getEnvFloat("ADX_STRONG", st.ADXStrong)

	st.DivergenceEnabled = getEnvBool("DIVERGENCE_ENABLED", st.DivergenceEnabled)
	st.BBEnabled = getEnvBool("BB_ENABLED", st.BBEnabled)
	st.BBSqueezeThreshold = getEnvFloat("BB_SQUEEZE_THRESHOLD", st.BBSqueezeThreshold)

	st.HTFFilterEnabled = getEnvBool("HTF_FILTER_ENABLED", st.HTFFilterEnabled)
	st.HourFilterEnabled = getEnvBool("HOUR_FILTER_ENABLED", st.HourFilterEnabled)
	st.MinHourWinRate = getEnvFloat("MIN_HOUR_WINRATE", st.MinHourWinRate)
	st.MinHourSamples = getEnvInt("MIN_HOUR_SAMPLES", st.MinHourSamples)
	st.SessionFilterEnabled = getEnvBool("SESSION_FILTER_ENABLED", st.SessionFilterEnabled)
	st.SessionStartHour = getEnvInt("SESSION_START_HOUR", st.SessionStartHour)
	st.SessionEndHour = getEnvInt("SESSION_END_HOUR", st.SessionEndHour)

	st.MinConfidence = getEnvFloat("MIN_CONFIDENCE", st.MinConfidence)
	st.HighConfidence = getEnvFloat("HIGH_CONFIDENCE", st.HighConfidence)

	st.MaxHedges = getEnvInt("MAX_HEDGES", st.MaxHedges)
	st.HedgeTriggerEarly = getEnvFloat("HEDGE_TRIGGER_EARLY", st.HedgeTriggerEarly)
	st.HedgeTriggerMid = getEnvFloat("HEDGE_TRIGGER_MID", st.HedgeTriggerMid)
	st.HedgeTriggerLate = getEnvFloat("HEDGE_TRIGGER_LATE", st.HedgeTriggerLate)
	st.ProgressiveTrigger = getEnvFloatList("PROGRESSIVE_TRIGGERS", st.ProgressiveTrigger)
	st.MinMinutesForHedge = getEnvFloat("MIN_MINUTES_FOR_HEDGE", st.MinMinutesForHedge)
	st.HedgeConfirm = getEnvSeconds("HEDGE_CONFIRM_SECONDS", st.HedgeConfirm)
	st.HedgeRequireVolume = getEnvBool("HEDGE_REQUIRE_VOLUME", st.HedgeRequireVolume)

	st.AddWinnerEnabled = getEnvBool("ADD_WINNER_ENABLED", st.AddWinnerEnabled)
	st.MaxAdds = getEnvInt("MAX_ADDS", st.MaxAdds)
	st.AddMinMinutes = getEnvFloat("ADD_MIN_MINUTES", st.AddMinMinutes)
	st.AddMaxMinutes = getEnvFloat("ADD_MAX_MINUTES", st.AddMaxMinutes)
	st.AddMinDistancePct = getEnvFloat("ADD_MIN_DISTANCE_PCT", st.AddMinDistancePct)
	st.AddMinTokenPrice = getEnvFloat("ADD_MIN_TOKEN_PRICE", st.AddMinTokenPrice)
	st.AddConfirm = getEnvSeconds("ADD_CONFIRM_SECONDS", st.AddConfirm)

	// Risk
	cfg.Risk.MaxConsecutiveLosses = getEnvInt("MAX_CONSECUTIVE_LOSSES", cfg.Risk.MaxConsecutiveLosses)
	cfg.Risk.LossCooldown = getEnvSeconds("LOSS_COOLDOWN_SECONDS", cfg.Risk.LossCooldown)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would make the bot misbehave silently
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("SYMBOLS must list at least one symbol")
	}
	if !c.Sizing.BetSize.IsPositive() {
		return errors.New("BET_SIZE must be positive")
	}
	if c.Sizing.MaxPosition.LessThan(c.Sizing.BetSize) {
		return fmt.Errorf("MAX_POSITION (%s) must be >= BET_SIZE (%s)", c.Sizing.MaxPosition, c.Sizing.BetSize)
	}
	if c.Sizing.TrailSize <= 0 {
		return errors.New("TRAIL_SIZE must be positive")
	}
	if len(c.Strategy.ProgressiveTrigger) == 0 {
		return errors.New("PROGRESSIVE_TRIGGERS must not be empty")
	}
	for _, t := range c.Strategy.ProgressiveTrigger {
		if t <= 0 || t >= 1 {
			return fmt.Errorf("progressive trigger %.3f outside (0,1)", t)
		}
	}
	if c.Strategy.MinConfidence < 0 || c.Strategy.MinConfidence > 1 {
		return errors.New("MIN_CONFIDENCE must be within [0,1]")
	}
	if c.Strategy.SessionStartHour < 0 || c.Strategy.SessionStartHour > 23 ||
		c.Strategy.SessionEndHour < 0 || c.Strategy.SessionEndHour > 24 {
		return errors.New("session hours must be within 0-24")
	}
	if c.WorkerCount < 1 {
		return errors.New("WORKER_COUNT must be >= 1")
	}
	return nil
}

// LiveReady reports whether credentials for live trading are present
func (c *Config) LiveReady() bool {
	return c.WalletPrivateKey != "" && c.CLOBApiKey != "" && c.CLOBApiSecret != "" && c.CLOBPassphrase != ""
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvSeconds reads a plain number of seconds ("30") or a duration ("30s")
func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvFloatList(key string, defaultValue []float64) []float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []float64
	for _, part := range strings.Split(value, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, f)
	}
	return out
}
