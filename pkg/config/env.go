package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	PointerBackendFile   = "file"
	PointerBackendRedis  = "redis"
	PointerBackendMemory = "memory"
)

const (
	EnvAppEnv          = "STOREFRONT_APP_ENV"
	EnvLogLevel        = "STOREFRONT_LOG_LEVEL"
	EnvDiagnosticsAddr = "STOREFRONT_DIAGNOSTICS_ADDR"

	EnvDBDriver = "STOREFRONT_DB_DRIVER"
	EnvDBDSN    = "STOREFRONT_DB_DSN"

	EnvBlobDir               = "STOREFRONT_BLOB_DIR"
	EnvBlobImageMaxDimension = "STOREFRONT_BLOB_IMAGE_MAX_DIMENSION"
	EnvBlobImageQuality      = "STOREFRONT_BLOB_IMAGE_QUALITY"

	EnvCacheMemoryCapacity = "STOREFRONT_CACHE_MEMORY_CAPACITY"

	EnvPointerBackend    = "STOREFRONT_POINTER_BACKEND"
	EnvPointerPath       = "STOREFRONT_POINTER_PATH"
	EnvPointerPassphrase = "STOREFRONT_POINTER_PASSPHRASE"

	EnvRedisURL  = "STOREFRONT_REDIS_URL"
	EnvRedisAddr = "STOREFRONT_REDIS_ADDR"

	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvJWTExpirationMinutes = "STOREFRONT_JWT_EXPIRATION_MINUTES"
)
