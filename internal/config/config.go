package config

import (
	"os"
	"strconv"
)

type Config struct {
	Addr        string
	JWTSecret   string
	JWTTTLMin   int
	DBDriver    string // "sqlite" or "postgres"
	SQLITEDsn   string
	PostgresDsn string
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val != "" {
		return val
	}
	return def
}

func MustLoad() Config {
	jwtttl, _ := strconv.Atoi(getenv("JWT_TTL_MIN", "1440"))

	cfg := Config{
		Addr:        getenv("HTTP_ADDR", ":5000"),
		JWTSecret:   getenv("JWT_SECRET", ""),
		JWTTTLMin:   jwtttl,
		DBDriver:    getenv("DB_DRIVER", "sqlite"),
		SQLITEDsn:   getenv("SQLITE_DSN", "file:vibechat.db?_pragma=foreign_keys(ON)"),
		PostgresDsn: getenv("POSTGRES_DSN", ""),
	}
	return cfg
}
