package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/telegram-trading/src/models"
)

const DEV_ENV_FILENAME = ".env.development"
const PROD_ENV_FILENAME = ".env.production"

// Config collects every knob the runtime core reads. It is built once at
// startup from environment variables and validated before anything runs.
type Config struct {
	TradeMode models.TradeMode
	Symbols   []models.Symbol

	KabusBaseURL  string
	KabusWsURL    string
	KabusPassword string

	DatabaseURL      string
	TelegramBotToken string
	TelegramChatID   string

	KillSwitchFile string
	PositionFile   string
	CalendarFile   string
	OpsListenAddr  string

	DefaultFeed            models.FeedMode
	WsStaleThreshold       time.Duration
	WsStartupGrace         time.Duration
	WsMinNormalDwell       time.Duration
	WsMinDegradedDwell     time.Duration
	WsRecoverStableFor     time.Duration
	WsRecoverConsecBars    int
	WsRecoveryPolicy       models.RecoveryPolicy
	WsMaxReconnectAttempts int
	WsReconnectBaseDelay   time.Duration
	WsReadTimeout          time.Duration
	StreamOffSession       bool
	AuctionAllowExits      bool

	StartingCapital     float64
	DailyMaxLossPercent float64
	ApiErrorMax         int
	ApiErrorWindow      time.Duration

	InSessionInterval  time.Duration
	PreopenInterval    time.Duration
	OffSessionInterval time.Duration
}

// InitEnvironmentVariables loads the .env file for the current GO_ENV. In
// production the environment is expected to be injected by the platform, so a
// missing file is not an error there.
func InitEnvironmentVariables() error {
	envFile := DEV_ENV_FILENAME
	if os.Getenv("GO_ENV") == "production" {
		envFile = PROD_ENV_FILENAME
	}

	if err := godotenv.Load(envFile); err != nil {
		if os.Getenv("GO_ENV") == "production" {
			log.Infof("no %s file found, using platform environment", envFile)
			return nil
		}

		return fmt.Errorf("failed to load %s file: %v", envFile, err)
	}

	return nil
}

func Load() (*Config, error) {
	cfg := &Config{
		TradeMode:     models.TradeMode(envString("TRADE_MODE", string(models.TradeModeDryRun))),
		KabusBaseURL:  envString("KABUS_BASE_URL", "http://localhost:18080/kabusapi"),
		KabusWsURL:    envString("KABUS_WS_URL", "ws://localhost:18080/kabusapi/websocket"),
		KabusPassword: os.Getenv("KABUS_API_PASSWORD"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),

		KillSwitchFile: envString("KILL_SWITCH_FILE", "kill_switch"),
		PositionFile:   envString("POSITION_FILE", "position.json"),
		CalendarFile:   envString("CALENDAR_FILE", "calendar.yaml"),
		OpsListenAddr:  envString("OPS_LISTEN_ADDR", ":8090"),

		DefaultFeed:            models.FeedMode(envString("FEED_DEFAULT", string(models.FeedModeWs))),
		WsStaleThreshold:       envSeconds("WS_STALE_SECONDS", 90),
		WsStartupGrace:         envSeconds("WS_STARTUP_GRACE_SECONDS", 120),
		WsMinNormalDwell:       envSeconds("WS_MIN_NORMAL_SECONDS", 60),
		WsMinDegradedDwell:     envSeconds("WS_MIN_DEGRADED_SECONDS", 300),
		WsRecoverStableFor:     envSeconds("WS_RECOVER_STABLE_SECONDS", 180),
		WsRecoverConsecBars:    envInt("WS_RECOVER_CONSEC_BARS", 3),
		WsRecoveryPolicy:       models.RecoveryPolicy(envString("WS_RECOVERY_POLICY", string(models.RecoveryPolicyNextSession))),
		WsMaxReconnectAttempts: envInt("WS_MAX_RECONNECT_ATTEMPTS", 5),
		WsReconnectBaseDelay:   envSeconds("WS_RECONNECT_BASE_SECONDS", 1),
		WsReadTimeout:          envSeconds("WS_READ_TIMEOUT_SECONDS", 30),
		StreamOffSession:       envBool("STREAM_OFF_SESSION", false),
		AuctionAllowExits:      envBool("AUCTION_ALLOW_EXITS", true),

		StartingCapital:     envFloat("STARTING_CAPITAL", 10_000_000),
		DailyMaxLossPercent: envFloat("DAILY_MAX_LOSS_PERCENT", 3.0),
		ApiErrorMax:         envInt("API_ERROR_MAX", 5),
		ApiErrorWindow:      envMinutes("API_ERROR_WINDOW_MINUTES", 10),

		InSessionInterval:  envSeconds("IN_SESSION_INTERVAL_SECONDS", 10),
		PreopenInterval:    envSeconds("PREOPEN_INTERVAL_SECONDS", 30),
		OffSessionInterval: envSeconds("OFF_SESSION_INTERVAL_SECONDS", 900),
	}

	for _, s := range strings.Split(envString("SYMBOLS", ""), ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			cfg.Symbols = append(cfg.Symbols, models.Symbol(s))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.TradeMode.Validate(); err != nil {
		return err
	}

	if err := c.WsRecoveryPolicy.Validate(); err != nil {
		return err
	}

	if c.DefaultFeed != models.FeedModeWs && c.DefaultFeed != models.FeedModeRest {
		return fmt.Errorf("FEED_DEFAULT must be ws or rest, got %s", c.DefaultFeed)
	}

	if len(c.Symbols) == 0 {
		return fmt.Errorf("SYMBOLS must list at least one securities code")
	}

	if c.StartingCapital <= 0 {
		return fmt.Errorf("STARTING_CAPITAL must be positive, got %f", c.StartingCapital)
	}

	if c.DailyMaxLossPercent <= 0 {
		return fmt.Errorf("DAILY_MAX_LOSS_PERCENT must be positive, got %f", c.DailyMaxLossPercent)
	}

	if c.WsMaxReconnectAttempts < 0 {
		return fmt.Errorf("WS_MAX_RECONNECT_ATTEMPTS must not be negative, got %d", c.WsMaxReconnectAttempts)
	}

	if c.WsRecoverConsecBars < 2 {
		return fmt.Errorf("WS_RECOVER_CONSEC_BARS must be at least 2, got %d", c.WsRecoverConsecBars)
	}

	if c.TradeMode != models.TradeModeDryRun && c.KabusPassword == "" {
		return fmt.Errorf("KABUS_API_PASSWORD must be set outside dry_run mode")
	}

	return nil
}

func envString(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("failed to convert %s='%s' to int, using default %d", key, v, fallback)
		return fallback
	}

	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warnf("failed to convert %s='%s' to float, using default %f", key, v, fallback)
		return fallback
	}

	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warnf("failed to convert %s='%s' to bool, using default %v", key, v, fallback)
		return fallback
	}

	return b
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}

func envMinutes(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Minute
}
