package config

const (
	// EnvPrefix namespaces every environment variable read by Load.
	EnvPrefix = "RESTO"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvDBDSN  = "RESTO_DB_DSN"
	EnvDBHost = "RESTO_DB_HOST"
	EnvDBUser = "RESTO_DB_USER"
	EnvDBName = "RESTO_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
