package config

import (
	"os"
	"strconv"
)

type Config struct {
	Addr        string
	JWTSecret   string
	JWTTTLMin   int
	DBDriver    string
	SQLiteDSN   string
	PostgresDSN string
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
		Addr:        getenv("HTTP_ADDR", ":8080"),
		JWTSecret:   getenv("JWT_SECRET", ""),
		JWTTTLMin:   jwtttl,
		DBDriver:    getenv("DB_DRIVER", "sqlite"),
		SQLiteDSN:   getenv("SQLITE_DSN", "file:chat.db?_pragma=foreign_keys(ON)"),
		PostgresDSN: getenv("POSTGRES_DSN", ""),
	}
	return cfg
}
