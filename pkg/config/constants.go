package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "SUBSAGE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "SUBSAGE_DB_DSN"
	EnvDBHost = "SUBSAGE_DB_HOST"
	EnvDBUser = "SUBSAGE_DB_USER"
	EnvDBName = "SUBSAGE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
