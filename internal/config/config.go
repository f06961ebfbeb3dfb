package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string
	HTTPMaxConns int
	PublicURL    string // scheme and host used in mailed links

	DBDriver       string // postgres|sqlite
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	SQLitePath     string
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBMaxIdleTime  time.Duration

	JWTSecret   string
	CORSOrigins []string

	RateLimitRPS   float64
	RateLimitBurst int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPSender   string
}

// Load reads the process environment. A .env file in the working directory,
// when present, is applied first without overriding variables already set.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] .env not loaded: %v", err)
	}

	driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	if driver == "" {
		driver = "postgres"
	}

	return &Config{
		HTTPAddr:     envString("HTTP_ADDR", ":8080"),
		HTTPMaxConns: envInt("HTTP_MAX_CONNS", 0),
		PublicURL:    strings.TrimRight(envString("PUBLIC_URL", "http://localhost:8080"), "/"),

		DBDriver:       driver,
		DBHost:         os.Getenv("DB_HOST"),
		DBPort:         envInt("DB_PORT", 5432),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),
		DBSSLMode:      envString("DB_SSLMODE", "disable"),
		SQLitePath:     envString("SQLITE_PATH", "clientboard.db"),
		DBMaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: envInt("DB_MAX_IDLE_CONNS", 25),
		DBMaxIdleTime:  envDuration("DB_MAX_IDLE_TIME", 15*time.Minute),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: envList("CORS_ORIGINS", []string{"*"}),

		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 5),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPSender:   os.Getenv("SMTP_SENDER"),
	}
}

// ConnString returns the DSN for the configured driver.
func (c *Config) ConnString() string {
	if c.DBDriver == "sqlite" {
		return SQLiteDSN(c.SQLitePath)
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// SQLiteDSN enables foreign keys and a busy timeout on every connection.
func SQLiteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Set("_time_format", "sqlite")
	return "file:" + path + "?" + q.Encode()
}

func envString(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("[WARN] invalid value %q for %s, defaulting to %s", raw, key, fallback)
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
