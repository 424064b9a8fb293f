// Package config loads and validates the bot configuration from
// environment variables. A .env file in the working directory is loaded
// first without overriding variables already set in the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Chain and protocol constants for Base mainnet.
const (
	BaseChainID = 8453
	// WETHAddress is the canonical wrapped native token on Base.
	WETHAddress = "0x4200000000000000000000000000000000000006"
)

// DefaultRouters maps router names to their Base mainnet addresses.
var DefaultRouters = map[string]string{
	"uniswap_v3": "0x2626664c2603336E57B271c5C0b26F421741e481",
	"baseswap":   "0x327Df1E6de05895d2ab08513aaDD9313Fe505d86",
	"camelot":    "0xc873fEcbd354f5A56E00E710B90EF4201db2448d",
}

// SwingToken is one member of the swing strategy's fixed trading universe.
type SwingToken struct {
	Symbol  string
	Address string
}

// Config is the full runtime configuration.
type Config struct {
	// Chain connectivity
	RPCURL          string
	WebsocketURL    string
	ExplorerAPIKey  string // Basescan API key, optional
	ExplorerAPIURL  string
	HoneypotAPIURL  string
	SnifferAPIURL   string
	SnifferAPIKey   string

	// Wallet
	PrivateKey    string // hex private key, required unless DryRun
	WalletAddress string

	// Telegram
	TelegramToken  string // optional, notifications degrade to logging
	TelegramChatID int64

	// Execution
	DryRun           bool
	GasPriceCapGwei  float64
	GasPriceSpeedup  float64 // multiplier applied to the suggested gas price
	SlippageDefault  float64 // percent

	// Sniper strategy
	Sniper SniperConfig

	// Swing strategy
	Swing SwingConfig

	// Security analyzer
	Security SecurityConfig

	// Price oracle
	Pricing PricingConfig

	// Accounting
	StartingBalanceUSD float64
	PostgresDSN        string // optional closed-trade journal

	// Observability
	MetricsAddr string
	LogLevel    string
	LogJSON     bool

	// Notifications
	NotifyCooldown time.Duration
}

// SniperConfig holds the memecoin sniper parameters.
type SniperConfig struct {
	MaxInvestmentUSD  float64       // per-token cap
	ProfitTarget      float64       // exit multiplier above entry
	StopLoss          float64       // exit multiplier below entry
	MinLiquidityETH   float64
	MinHolders        int
	MinScore          float64       // composite score gate
	SnipeCooldown     time.Duration // per-token re-entry cooldown
	MonitorInterval   time.Duration
	MaxHold           time.Duration
	OpportunityTTL    time.Duration // stale opportunities are pruned
	ExposureMultiple  float64       // total sniper exposure cap, in per-token caps
	ScoreWeights      ScoreWeights
}

// ScoreWeights are the composite opportunity score coefficients.
type ScoreWeights struct {
	Social    float64
	Security  float64
	Liquidity float64
	Holders   float64
}

// SwingConfig holds the altcoin swing trading parameters.
type SwingConfig struct {
	MaxInvestmentUSD    float64
	ProfitTarget        float64
	StopLoss            float64
	PollInterval        time.Duration
	SignalInterval      time.Duration
	MinSamples          int
	MinStrength         float64
	MonitorInterval     time.Duration
	MaxHold             time.Duration
	RebalanceInterval   time.Duration
	HistoryWindow       time.Duration
	MaxPositionFraction float64 // of available balance
	MinTicketUSD        float64
	ReinvestThreshold   float64 // profit above which part is reinvested
	ReinvestFraction    float64
	Universe            []SwingToken
	IndicatorWeights    IndicatorWeights
}

// IndicatorWeights are the per-indicator contributions to signal strength.
type IndicatorWeights struct {
	RSI       float64
	MACD      float64
	MA        float64
	Bollinger float64
	Volume    float64
}

// SecurityConfig holds the analyzer thresholds.
type SecurityConfig struct {
	CacheTTL          time.Duration
	RejectThreshold   float64 // risk above this blocks trading
	HoneypotThreshold float64 // risk at or above this marks a honeypot
	CheckTimeout      time.Duration
}

// PricingConfig holds the oracle parameters.
type PricingConfig struct {
	CacheTTL         time.Duration
	ETHFallbackUSD   float64 // used when every fiat source fails
	CoinMarketCapKey string  // optional second fiat source
	RequestTimeout   time.Duration
}

// defaultSwingUniverse are liquid Base tokens the swing strategy trades.
var defaultSwingUniverse = []SwingToken{
	{Symbol: "AERO", Address: "0x940181a94A35A4569E4529A3CDfB74e38FD98631"},
	{Symbol: "DEGEN", Address: "0x4ed4E862860beD51a9570b96d89aF5E1B0Efefed"},
	{Symbol: "BRETT", Address: "0x532f27101965dd16442E59d40670FaF5eBB142E4"},
	{Symbol: "TOSHI", Address: "0xAC1Bd2486aAf3B5C0fc3Fd868558b082a531B2B4"},
}

// Load reads configuration from the environment. It returns an error
// listing every missing required variable; callers treat that as fatal.
func Load() (*Config, error) {
	// Ignore a missing .env file; explicit env vars always win.
	_ = godotenv.Load()

	cfg := &Config{
		RPCURL:         os.Getenv("BASE_RPC_URL"),
		WebsocketURL:   os.Getenv("BASE_WEBSOCKET_URL"),
		ExplorerAPIKey: os.Getenv("BASESCAN_API_KEY"),
		ExplorerAPIURL: envString("BASESCAN_API_URL", "https://api.basescan.org/api"),
		HoneypotAPIURL: envString("HONEYPOT_API_URL", "https://api.honeypot.is/v2/IsHoneypot"),
		SnifferAPIURL:  envString("TOKEN_SNIFFER_API_URL", "https://tokensniffer.com/api/v2"),
		SnifferAPIKey:  os.Getenv("TOKEN_SNIFFER_API_KEY"),

		PrivateKey:    os.Getenv("PRIVATE_KEY"),
		WalletAddress: os.Getenv("WALLET_ADDRESS"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		DryRun:          envBool("DRY_RUN_MODE", true),
		GasPriceCapGwei: envFloat("GAS_PRICE_CAP_GWEI", 0.5),
		GasPriceSpeedup: envFloat("GAS_PRICE_SPEEDUP", 1.1),
		SlippageDefault: envFloat("DEFAULT_SLIPPAGE_PCT", 2.0),

		Sniper: SniperConfig{
			MaxInvestmentUSD: envFloat("MAX_MEMECOIN_INVESTMENT_USD", 8),
			ProfitTarget:     envFloat("MEMECOIN_PROFIT_TARGET", 2.0),
			StopLoss:         envFloat("MEMECOIN_STOP_LOSS", 0.7),
			MinLiquidityETH:  envFloat("MIN_LIQUIDITY_ETH", 0.01),
			MinHolders:       envInt("MIN_HOLDERS", 50),
			MinScore:         envFloat("SNIPE_MIN_SCORE", 0.6),
			SnipeCooldown:    envDuration("SNIPE_COOLDOWN", 30*time.Second),
			MonitorInterval:  envDuration("SNIPER_MONITOR_INTERVAL", 10*time.Second),
			MaxHold:          envDuration("SNIPER_MAX_HOLD", 24*time.Hour),
			OpportunityTTL:   envDuration("OPPORTUNITY_TTL", time.Hour),
			ExposureMultiple: envFloat("SNIPER_EXPOSURE_MULTIPLE", 10),
			ScoreWeights: ScoreWeights{
				Social:    envFloat("SCORE_WEIGHT_SOCIAL", 0.4),
				Security:  envFloat("SCORE_WEIGHT_SECURITY", 0.3),
				Liquidity: envFloat("SCORE_WEIGHT_LIQUIDITY", 0.2),
				Holders:   envFloat("SCORE_WEIGHT_HOLDERS", 0.1),
			},
		},

		Swing: SwingConfig{
			MaxInvestmentUSD:    envFloat("ALTCOIN_MAX_INVESTMENT_USD", 100),
			ProfitTarget:        envFloat("ALTCOIN_PROFIT_TARGET", 1.5),
			StopLoss:            envFloat("ALTCOIN_STOP_LOSS", 0.85),
			PollInterval:        envDuration("SWING_POLL_INTERVAL", time.Minute),
			SignalInterval:      envDuration("SWING_SIGNAL_INTERVAL", 5*time.Minute),
			MinSamples:          envInt("SWING_MIN_SAMPLES", 50),
			MinStrength:         envFloat("SWING_MIN_STRENGTH", 0.7),
			MonitorInterval:     envDuration("SWING_MONITOR_INTERVAL", 30*time.Second),
			MaxHold:             envDuration("SWING_MAX_HOLD", 7*24*time.Hour),
			RebalanceInterval:   envDuration("PORTFOLIO_REBALANCE_INTERVAL", time.Duration(envInt("PORTFOLIO_REBALANCE_HOURS", 24))*time.Hour),
			HistoryWindow:       envDuration("SWING_HISTORY_WINDOW", 48*time.Hour),
			MaxPositionFraction: envFloat("SWING_MAX_POSITION_FRACTION", 0.2),
			MinTicketUSD:        envFloat("SWING_MIN_TICKET_USD", 10),
			ReinvestThreshold:   envFloat("REINVEST_THRESHOLD_USD", 100),
			ReinvestFraction:    envFloat("REINVEST_FRACTION", 0.5),
			Universe:            parseUniverse(os.Getenv("SWING_TOKENS")),
			IndicatorWeights: IndicatorWeights{
				RSI:       envFloat("WEIGHT_RSI", 0.3),
				MACD:      envFloat("WEIGHT_MACD", 0.2),
				MA:        envFloat("WEIGHT_MA", 0.2),
				Bollinger: envFloat("WEIGHT_BOLLINGER", 0.2),
				Volume:    envFloat("WEIGHT_VOLUME", 0.1),
			},
		},

		Security: SecurityConfig{
			CacheTTL:          envDuration("SECURITY_CACHE_TTL", time.Hour),
			RejectThreshold:   envFloat("SECURITY_REJECT_THRESHOLD", 0.7),
			HoneypotThreshold: envFloat("SECURITY_HONEYPOT_THRESHOLD", 0.8),
			CheckTimeout:      envDuration("SECURITY_CHECK_TIMEOUT", 15*time.Second),
		},

		Pricing: PricingConfig{
			CacheTTL:         envDuration("PRICE_CACHE_TTL", 30*time.Second),
			ETHFallbackUSD:   envFloat("ETH_FALLBACK_PRICE_USD", 2000.0),
			CoinMarketCapKey: os.Getenv("COINMARKETCAP_API_KEY"),
			RequestTimeout:   envDuration("PRICE_REQUEST_TIMEOUT", 10*time.Second),
		},

		StartingBalanceUSD: envFloat("STARTING_BALANCE_USD", 1000),
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),

		MetricsAddr: envString("METRICS_ADDR", ":9090"),
		LogLevel:    envString("LOG_LEVEL", "info"),
		LogJSON:     envBool("LOG_JSON", false),

		NotifyCooldown: envDuration("NOTIFY_COOLDOWN", 5*time.Minute),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if len(cfg.Swing.Universe) == 0 {
		cfg.Swing.Universe = defaultSwingUniverse
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and value ranges. Any violation is
// fatal at startup: the bot never runs on a partial configuration.
func (c *Config) Validate() error {
	var missing []string
	if c.RPCURL == "" {
		missing = append(missing, "BASE_RPC_URL")
	}
	if c.WebsocketURL == "" {
		missing = append(missing, "BASE_WEBSOCKET_URL")
	}
	if !c.DryRun {
		if c.PrivateKey == "" {
			missing = append(missing, "PRIVATE_KEY")
		}
		if c.WalletAddress == "" {
			missing = append(missing, "WALLET_ADDRESS")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Sniper.ProfitTarget <= 1.0 {
		return fmt.Errorf("MEMECOIN_PROFIT_TARGET must be above 1.0, got %v", c.Sniper.ProfitTarget)
	}
	if c.Sniper.StopLoss <= 0 || c.Sniper.StopLoss >= 1.0 {
		return fmt.Errorf("MEMECOIN_STOP_LOSS must be in (0, 1), got %v", c.Sniper.StopLoss)
	}
	if c.Swing.ProfitTarget <= 1.0 {
		return fmt.Errorf("ALTCOIN_PROFIT_TARGET must be above 1.0, got %v", c.Swing.ProfitTarget)
	}
	if c.Swing.StopLoss <= 0 || c.Swing.StopLoss >= 1.0 {
		return fmt.Errorf("ALTCOIN_STOP_LOSS must be in (0, 1), got %v", c.Swing.StopLoss)
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	return nil
}

// parseUniverse parses "SYM:0xaddr,SYM:0xaddr" into swing tokens.
func parseUniverse(raw string) []SwingToken {
	if raw == "" {
		return nil
	}
	var out []SwingToken
	for _, part := range strings.Split(raw, ",") {
		fields := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
			continue
		}
		out = append(out, SwingToken{Symbol: fields[0], Address: fields[1]})
	}
	return out
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return parsed
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return parsed
}
