package config

// EnvPrefix is passed to envconfig; individual fields carry fully-qualified
// env var names so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvDBDSN  = "OKRIKA_DB_DSN"
	EnvDBHost = "OKRIKA_DB_HOST"
	EnvDBUser = "OKRIKA_DB_USER"
	EnvDBName = "OKRIKA_DB_NAME"
)

var requiredDBEnvVars = []string{
	EnvDBHost,
	EnvDBUser,
	EnvDBName,
}
