package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable. Values are read once at startup and
// treated as immutable for the lifetime of the process; nothing in the
// core reads ambient environment afterwards. The JWT secret is only
// ever handed to the token issuer and must never be logged.
type Config struct {
	Env           string // application environment (e.g. "dev", "prod")
	Port          string // HTTP port to listen on
	DBUser        string // database username
	DBPass        string // database password (optional)
	DBHost        string // database host address
	DBPort        string // database port number
	DBName        string // database name
	JWTSecret     string // secret used to sign JWTs
	AccessTTLMin  int    // access token time-to-live in minutes
	ResetTTLMin   int    // password reset token time-to-live in minutes
	BcryptCost    int    // bcrypt cost for password hashing
	DefaultRole   string // role assigned to self-registered users
	CreateAdmin   bool   // whether to bootstrap an admin account at startup
	AdminEmail    string // bootstrap admin account email
	AdminUsername string // bootstrap admin account username
	AdminPassword string // bootstrap admin account password
}

// Load reads configuration values from environment variables and
// returns a Config. Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:           must("APP_ENV"),
		Port:          must("APP_PORT"),
		DBUser:        must("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"), // empty allowed
		DBHost:        must("DB_HOST"),
		DBPort:        must("DB_PORT"),
		DBName:        must("DB_NAME"),
		JWTSecret:     must("JWT_SECRET"),
		AccessTTLMin:  mustInt("ACCESS_TOKEN_TTL_MIN"),
		ResetTTLMin:   mustInt("RESET_TOKEN_TTL_MIN"),
		BcryptCost:    mustInt("BCRYPT_COST"),
		DefaultRole:   envStr("DEFAULT_ROLE", "user"),
		CreateAdmin:   envBool("CREATE_DEFAULT_ADMIN", false),
		AdminEmail:    os.Getenv("DEFAULT_ADMIN_EMAIL"),
		AdminUsername: os.Getenv("DEFAULT_ADMIN_USERNAME"),
		AdminPassword: os.Getenv("DEFAULT_ADMIN_PASSWORD"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an
// integer. If conversion fails, the application logs a fatal error and
// exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	case "0", "false", "FALSE", "False", "no", "off":
		return false
	}
	return d
}
