package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Environment string
	LogLevel    string

	// Database (optional: empty DSN disables analysis history)
	DatabaseDSN         string
	DatabaseMaxConns    int
	DatabaseMaxIdleTime time.Duration

	// Chains
	Chain      string // key into Chains
	ChainsFile string
	Chains     map[string]ChainConfig

	// Block explorer
	ExplorerAPIKey      string
	ExplorerRPS         float64
	ExplorerTimeout     time.Duration
	ExplorerMaxFailures uint32
	ExplorerTxLimit     int
	ExplorerStartBlock  int64
	ExplorerEndBlock    int64

	// Price feed
	PriceAPIBaseURL string
	PriceQuote      string
	PriceRPS        float64
	PriceTimeout    time.Duration

	// Result cache
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Alerts
	AlertMode           string // comma-separated: log, discord, smtp
	DiscordWebhookURLs  []string
	SMTPHost            string
	SMTPPort            int
	SMTPUser            string
	SMTPPassword        string
	SMTPFrom            string
	SMTPTo              []string
	AlertCooldownMins   int
	WalletWarnScore     int
	WalletAlertScore    int
	ContractWarnScore   int
	AnalysisConcurrency int

	// HTTP
	HTTPPort int
}

// Load reads configuration from environment variables and the optional
// chains file.
func Load() (*Config, error) {
	explorerKey, err := getSecret("EXPLORER_API_KEY")
	if err != nil {
		return nil, err
	}
	redisPassword, err := getSecret("REDIS_PASSWORD")
	if err != nil {
		return nil, err
	}
	smtpPassword, err := getSecret("SMTP_PASSWORD")
	if err != nil {
		return nil, err
	}
	discordURLs, err := getSecret("DISCORD_WEBHOOK_URLS")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment:         getEnv("ENVIRONMENT", "production"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabaseDSN:         getEnv("DATABASE_DSN", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 10),
		DatabaseMaxIdleTime: time.Duration(getEnvInt("DATABASE_MAX_IDLE_TIME_MINS", 5)) * time.Minute,
		Chain:               strings.ToLower(getEnv("CHAIN", "bsc")),
		ChainsFile:          getEnv("CHAINS_FILE", ""),
		ExplorerAPIKey:      explorerKey,
		ExplorerRPS:         getEnvFloat("EXPLORER_RPS", 4.0),
		ExplorerTimeout:     time.Duration(getEnvInt("EXPLORER_TIMEOUT_SEC", 15)) * time.Second,
		ExplorerMaxFailures: uint32(getEnvInt("EXPLORER_MAX_FAILURES", 5)),
		ExplorerTxLimit:     getEnvInt("EXPLORER_TX_LIMIT", 1000),
		ExplorerStartBlock:  int64(getEnvInt("EXPLORER_START_BLOCK", 0)),
		ExplorerEndBlock:    int64(getEnvInt("EXPLORER_END_BLOCK", 99999999)),
		PriceAPIBaseURL:     getEnv("PRICE_API_BASE_URL", "https://api.binance.com"),
		PriceQuote:          strings.ToUpper(getEnv("PRICE_QUOTE", "USDT")),
		PriceRPS:            getEnvFloat("PRICE_RPS", 10.0),
		PriceTimeout:        time.Duration(getEnvInt("PRICE_TIMEOUT_SEC", 5)) * time.Second,
		CacheTTL:            time.Duration(getEnvInt("CACHE_TTL_SEC", 60)) * time.Second,
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       redisPassword,
		RedisDB:             getEnvInt("REDIS_DB", 0),
		AlertMode:           getEnv("ALERT_MODE", "log"),
		DiscordWebhookURLs:  parseCSV(discordURLs),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            getEnvInt("SMTP_PORT", 587),
		SMTPUser:            getEnv("SMTP_USER", ""),
		SMTPPassword:        smtpPassword,
		SMTPFrom:            getEnv("SMTP_FROM", "cryptoguard@example.com"),
		SMTPTo:              parseCSV(getEnv("SMTP_TO", "")),
		AlertCooldownMins:   getEnvInt("ALERT_COOLDOWN_MINS", 60),
		WalletWarnScore:     getEnvInt("WALLET_WARN_SCORE", 70),
		WalletAlertScore:    getEnvInt("WALLET_ALERT_SCORE", 90),
		ContractWarnScore:   getEnvInt("CONTRACT_WARN_SCORE", 70),
		AnalysisConcurrency: getEnvInt("ANALYSIS_CONCURRENCY", 8),
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
	}

	chains := DefaultChains()
	if cfg.ChainsFile != "" {
		fileChains, err := LoadChainsFile(cfg.ChainsFile)
		if err != nil {
			return nil, err
		}
		for key, chain := range fileChains {
			chains[key] = chain
		}
	}
	cfg.Chains = chains

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if _, ok := c.Chains[c.Chain]; !ok {
		return fmt.Errorf("unknown CHAIN %q (configured: %s)", c.Chain, strings.Join(c.ChainNames(), ", "))
	}

	if c.ExplorerRPS <= 0 {
		return fmt.Errorf("EXPLORER_RPS must be positive")
	}

	if c.ExplorerTimeout <= 0 {
		return fmt.Errorf("EXPLORER_TIMEOUT_SEC must be positive")
	}

	if c.WalletWarnScore > c.WalletAlertScore {
		return fmt.Errorf("WALLET_WARN_SCORE (%d) must not exceed WALLET_ALERT_SCORE (%d)", c.WalletWarnScore, c.WalletAlertScore)
	}

	if c.AnalysisConcurrency < 1 {
		return fmt.Errorf("ANALYSIS_CONCURRENCY must be at least 1")
	}

	// Validate alert mode (comma-separated list)
	hasDiscord := false
	hasSMTP := false
	for _, mode := range c.AlertModes() {
		switch mode {
		case "log":
		case "discord":
			hasDiscord = true
		case "smtp":
			hasSMTP = true
		default:
			return fmt.Errorf("invalid ALERT_MODE value: %s (valid values: log, discord, smtp)", mode)
		}
	}

	if hasDiscord && len(c.DiscordWebhookURLs) == 0 {
		return fmt.Errorf("DISCORD_WEBHOOK_URLS is required when discord is in ALERT_MODE")
	}

	if hasSMTP && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required when smtp is in ALERT_MODE")
	}

	return nil
}

// ActiveChain returns the chain selected by CHAIN
func (c *Config) ActiveChain() ChainConfig {
	chain := c.Chains[c.Chain]
	if chain.Explorer.APIKey == "" {
		chain.Explorer.APIKey = c.ExplorerAPIKey
	}
	return chain
}

// ChainNames lists configured chain keys in sorted order
func (c *Config) ChainNames() []string {
	names := make([]string, 0, len(c.Chains))
	for name := range c.Chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AlertModes splits ALERT_MODE into trimmed entries
func (c *Config) AlertModes() []string {
	return parseCSV(c.AlertMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func parseCSV(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
