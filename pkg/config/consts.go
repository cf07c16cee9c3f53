package config

// EnvPrefix is passed to envconfig; every variable is fully qualified in the
// struct tags, so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "INTERESTMINER_APP_ENV"
	EnvPort      = "INTERESTMINER_APP_PORT"
	EnvDBDSN     = "INTERESTMINER_DB_DSN"
	EnvDBHost    = "INTERESTMINER_DB_HOST"
	EnvDBUser    = "INTERESTMINER_DB_USER"
	EnvDBName    = "INTERESTMINER_DB_NAME"
	EnvRedisURL  = "INTERESTMINER_REDIS_URL"
	EnvJWTSecret = "INTERESTMINER_JWT_SECRET"
	EnvJWTIssuer = "INTERESTMINER_JWT_ISSUER"
	EnvJWTExp    = "INTERESTMINER_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
