package config

const EnvPrefix = "SHOPFRONT"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv            = "SHOPFRONT_APP_ENV"
	EnvPort              = "SHOPFRONT_APP_PORT"
	EnvDBDSN             = "SHOPFRONT_DB_DSN"
	EnvDBHost            = "SHOPFRONT_DB_HOST"
	EnvDBUser            = "SHOPFRONT_DB_USER"
	EnvDBName            = "SHOPFRONT_DB_NAME"
	EnvRedisURL          = "SHOPFRONT_REDIS_URL"
	EnvGatewayMerchantID = "SHOPFRONT_GATEWAY_MERCHANT_ID"
	EnvGatewaySecret     = "SHOPFRONT_GATEWAY_SECRET"
	EnvGatewayEndpoint   = "SHOPFRONT_GATEWAY_ENDPOINT"
	EnvGatewayReturnURL  = "SHOPFRONT_GATEWAY_RETURN_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
