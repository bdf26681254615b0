package config

import "strconv"

// RedisConfig is optional; with an empty Addr the session store falls back
// to the in-memory implementation.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func LoadRedis() RedisConfig {
	db, err := strconv.Atoi(GetEnv("REDIS_DB", "0"))
	if err != nil {
		db = 0
	}
	return RedisConfig{
		Addr:     GetEnv("REDIS_ADDR", ""),
		Password: GetEnv("REDIS_PASSWORD", ""),
		DB:       db,
	}
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}
