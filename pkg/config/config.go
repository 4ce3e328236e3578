package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App     AppConfig
	Service ServiceConfig
	DB      DBConfig
	Redis   RedisConfig
	Season  SeasonConfig
	Rewards RewardsConfig
	Chain   ChainConfig
	GCP     GCPConfig
	PubSub  PubSubConfig
	Outbox  OutboxConfig
	Cron    CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Season.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Rewards.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"SCOUTLEDGER_APP_ENV" required:"true"`
	Port         string   `envconfig:"SCOUTLEDGER_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"SCOUTLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"SCOUTLEDGER_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool     `envconfig:"SCOUTLEDGER_AUTO_MIGRATE" default:"false"`
	CORSOrigins  []string `envconfig:"SCOUTLEDGER_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SCOUTLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"SCOUTLEDGER_DB_DSN"`

	LegacyHost     string `envconfig:"SCOUTLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"SCOUTLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SCOUTLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"SCOUTLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"SCOUTLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"SCOUTLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SCOUTLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SCOUTLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SCOUTLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SCOUTLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SCOUTLEDGER_REDIS_URL"`
	Address      string        `envconfig:"SCOUTLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"SCOUTLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"SCOUTLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SCOUTLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SCOUTLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SCOUTLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SCOUTLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SCOUTLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SeasonConfig describes the active reward season. AllocatedTokens is expressed in
// whole tokens and converted to 18-decimal base units by AllocatedTokenUnits.
type SeasonConfig struct {
	StartWeek         string    `envconfig:"SCOUTLEDGER_SEASON_START_WEEK" required:"true"`
	AllocatedTokens   string    `envconfig:"SCOUTLEDGER_SEASON_ALLOCATED_TOKENS" default:"0"`
	AllocatedPoints   float64   `envconfig:"SCOUTLEDGER_SEASON_ALLOCATED_POINTS" default:"0"`
	WeeklyPercentages []float64 `envconfig:"SCOUTLEDGER_SEASON_WEEKLY_PERCENTAGES"`
	DecayRate         float64   `envconfig:"SCOUTLEDGER_SEASON_DECAY_RATE" default:"0.03"`
}

// AllocatedTokenUnits returns the season token allocation scaled to 18 decimals.
func (s SeasonConfig) AllocatedTokenUnits() (decimal.Decimal, error) {
	raw := strings.TrimSpace(s.AllocatedTokens)
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", EnvSeasonAllocatedTokens, raw, err)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s cannot be negative", EnvSeasonAllocatedTokens)
	}
	return amount.Shift(TokenDecimals).Truncate(0), nil
}

func (s SeasonConfig) validate() error {
	if strings.TrimSpace(s.StartWeek) == "" {
		return fmt.Errorf("%s is required", EnvSeasonStartWeek)
	}
	if len(s.WeeklyPercentages) != 0 && len(s.WeeklyPercentages) != SeasonWeeks {
		return fmt.Errorf("%s must list %d entries, got %d", EnvSeasonWeeklyPercentages, SeasonWeeks, len(s.WeeklyPercentages))
	}
	if s.DecayRate <= 0 || s.DecayRate >= 1 {
		return fmt.Errorf("%s must be between 0 and 1", EnvSeasonDecayRate)
	}
	if s.AllocatedPoints < 0 {
		return fmt.Errorf("%s cannot be negative", EnvSeasonAllocatedPoints)
	}
	if _, err := s.AllocatedTokenUnits(); err != nil {
		return err
	}
	return nil
}

type RewardsConfig struct {
	Mode               string `envconfig:"SCOUTLEDGER_REWARDS_MODE" default:"tokens"`
	TopBuilders        int    `envconfig:"SCOUTLEDGER_REWARDS_TOP_BUILDERS" default:"100"`
	BuilderPoolPct     int    `envconfig:"SCOUTLEDGER_REWARDS_BUILDER_POOL_PCT" default:"20"`
	DefaultPoolPct     int    `envconfig:"SCOUTLEDGER_REWARDS_DEFAULT_POOL_PCT" default:"70"`
	StarterPackPoolPct int    `envconfig:"SCOUTLEDGER_REWARDS_STARTER_PACK_POOL_PCT" default:"10"`
	Parallelism        int    `envconfig:"SCOUTLEDGER_REWARDS_PARALLELISM" default:"8"`
	MaxStarterPacks    int    `envconfig:"SCOUTLEDGER_REWARDS_MAX_STARTER_PACKS" default:"3"`
}

// TokenMode reports whether rewards are paid as on-chain tokens.
func (r RewardsConfig) TokenMode() bool {
	return strings.EqualFold(strings.TrimSpace(r.Mode), RewardsModeTokens)
}

func (r RewardsConfig) validate() error {
	mode := strings.ToLower(strings.TrimSpace(r.Mode))
	if mode != RewardsModeTokens && mode != RewardsModePoints {
		return fmt.Errorf("%s must be %q or %q", EnvRewardsMode, RewardsModeTokens, RewardsModePoints)
	}
	if r.TopBuilders <= 0 {
		return fmt.Errorf("%s must be positive", EnvRewardsTopBuilders)
	}
	return nil
}

type ChainConfig struct {
	RPCURL             string        `envconfig:"SCOUTLEDGER_CHAIN_RPC_URL"`
	ChainID            int64         `envconfig:"SCOUTLEDGER_CHAIN_ID" default:"8453"`
	ClaimsContract     string        `envconfig:"SCOUTLEDGER_CHAIN_CLAIMS_CONTRACT"`
	Confirmations      uint64        `envconfig:"SCOUTLEDGER_CHAIN_CONFIRMATIONS" default:"3"`
	PollInitial        time.Duration `envconfig:"SCOUTLEDGER_CHAIN_POLL_INITIAL" default:"10m"`
	PollMaxInterval    time.Duration `envconfig:"SCOUTLEDGER_CHAIN_POLL_MAX_INTERVAL" default:"6h"`
	VerifyTimeout      time.Duration `envconfig:"SCOUTLEDGER_CHAIN_VERIFY_TIMEOUT" default:"30s"`
	SubmissionDeadline time.Duration `envconfig:"SCOUTLEDGER_CHAIN_SUBMISSION_DEADLINE" default:"24h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SCOUTLEDGER_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	RewardsTopic string `envconfig:"SCOUTLEDGER_PUBSUB_REWARDS_TOPIC" default:"scoutledger-rewards-events"`
	AlertsTopic  string `envconfig:"SCOUTLEDGER_PUBSUB_ALERTS_TOPIC" default:"scoutledger-alerts"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"SCOUTLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"SCOUTLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"SCOUTLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
	MetricsAddr    string `envconfig:"SCOUTLEDGER_OUTBOX_METRICS_ADDR" default:":9091"`
}

type CronConfig struct {
	Interval    time.Duration `envconfig:"SCOUTLEDGER_CRON_INTERVAL" default:"1h"`
	LockTTL     time.Duration `envconfig:"SCOUTLEDGER_CRON_LOCK_TTL" default:"2h"`
	JobTimeout  time.Duration `envconfig:"SCOUTLEDGER_CRON_JOB_TIMEOUT" default:"45m"`
	MetricsAddr string        `envconfig:"SCOUTLEDGER_CRON_METRICS_ADDR" default:":9090"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
