package config

const EnvPrefix = "NURSERYFINDER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "NURSERYFINDER_APP_ENV"
	EnvPort                   = "NURSERYFINDER_APP_PORT"
	EnvDBDSN                  = "NURSERYFINDER_DB_DSN"
	EnvDBHost                 = "NURSERYFINDER_DB_HOST"
	EnvDBUser                 = "NURSERYFINDER_DB_USER"
	EnvDBName                 = "NURSERYFINDER_DB_NAME"
	EnvRedisURL               = "NURSERYFINDER_REDIS_URL"
	EnvJWTSecret              = "NURSERYFINDER_JWT_SECRET"
	EnvJWTIssuer              = "NURSERYFINDER_JWT_ISSUER"
	EnvJWTAdminAudience       = "NURSERYFINDER_JWT_ADMIN_AUDIENCE"
	EnvJWTUserAudience        = "NURSERYFINDER_JWT_USER_AUDIENCE"
	EnvJWTExpMins             = "NURSERYFINDER_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "NURSERYFINDER_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "NURSERYFINDER_GCP_PROJECT_ID"
	EnvPubSubReviewTopic      = "NURSERYFINDER_PUBSUB_REVIEW_EVENTS_TOPIC"
	EnvModerationTimeout      = "NURSERYFINDER_MODERATION_REQUEST_TIMEOUT"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
