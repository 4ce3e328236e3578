package config

// EnvPrefix is unused by the explicit envconfig tags but keeps Process happy.
const EnvPrefix = "SCOUTLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	RewardsModeTokens = "tokens"
	RewardsModePoints = "points"

	// SeasonWeeks is the length of the weekly allocation schedule.
	SeasonWeeks = 13
	// TokenDecimals is the ERC-20 scale used for on-chain amounts.
	TokenDecimals = 18
)

const (
	EnvAppEnv   = "SCOUTLEDGER_APP_ENV"
	EnvPort     = "SCOUTLEDGER_APP_PORT"
	EnvDBDSN    = "SCOUTLEDGER_DB_DSN"
	EnvDBHost   = "SCOUTLEDGER_DB_HOST"
	EnvDBUser   = "SCOUTLEDGER_DB_USER"
	EnvDBName   = "SCOUTLEDGER_DB_NAME"
	EnvRedisURL = "SCOUTLEDGER_REDIS_URL"

	EnvSeasonStartWeek         = "SCOUTLEDGER_SEASON_START_WEEK"
	EnvSeasonAllocatedTokens   = "SCOUTLEDGER_SEASON_ALLOCATED_TOKENS"
	EnvSeasonAllocatedPoints   = "SCOUTLEDGER_SEASON_ALLOCATED_POINTS"
	EnvSeasonWeeklyPercentages = "SCOUTLEDGER_SEASON_WEEKLY_PERCENTAGES"
	EnvSeasonDecayRate         = "SCOUTLEDGER_SEASON_DECAY_RATE"

	EnvRewardsMode        = "SCOUTLEDGER_REWARDS_MODE"
	EnvRewardsTopBuilders = "SCOUTLEDGER_REWARDS_TOP_BUILDERS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
