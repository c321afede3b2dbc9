package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool

	Security SecurityConfig
}

// SecurityConfig carries rate-limit thresholds and alert-rule parameters.
// All values have defaults; override via env (SECURITY_* keys).
type SecurityConfig struct {
	ValidationPerMinute int           // invite-code validation attempts per IP per minute
	GenerationPerHour   int           // code generation per doctor per hour
	SignupPerMinute     int           // signup attempts per IP per minute
	BlockCooldown       time.Duration // how long an exceeding key stays blocked
	SuspiciousAfter     int           // rate violations before a key is escalated to suspicious
	FailedCodesAlertMin int           // failed validations from one IP that fire MULTIPLE_FAILED_CODES
	RapidSignupAlertMin int           // signup entries from one IP that fire RAPID_SIGNUP_ATTEMPTS
	EnumerationAlertMin int           // distinct hospital codes probed from one IP for UNUSUAL_PATTERN
	AlertWindow         time.Duration // how far back alert rules look
	AlertCooldown       time.Duration // one open alert per (type, source) within this period
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SECURITY_VALIDATION_PER_MINUTE", 10)
	viper.SetDefault("SECURITY_GENERATION_PER_HOUR", 20)
	viper.SetDefault("SECURITY_SIGNUP_PER_MINUTE", 5)
	viper.SetDefault("SECURITY_BLOCK_COOLDOWN", "15m")
	viper.SetDefault("SECURITY_SUSPICIOUS_AFTER", 3)
	viper.SetDefault("SECURITY_FAILED_CODES_ALERT_MIN", 5)
	viper.SetDefault("SECURITY_RAPID_SIGNUP_ALERT_MIN", 5)
	viper.SetDefault("SECURITY_ENUMERATION_ALERT_MIN", 5)
	viper.SetDefault("SECURITY_ALERT_WINDOW", "10m")
	viper.SetDefault("SECURITY_ALERT_COOLDOWN", "30m")

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = viper.GetString("DATABASE_URL")
	}

	return &Config{
		Env:                 env,
		Port:                port,
		SessionSecret:       viper.GetString("SESSION_SECRET"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		Security: SecurityConfig{
			ValidationPerMinute: viper.GetInt("SECURITY_VALIDATION_PER_MINUTE"),
			GenerationPerHour:   viper.GetInt("SECURITY_GENERATION_PER_HOUR"),
			SignupPerMinute:     viper.GetInt("SECURITY_SIGNUP_PER_MINUTE"),
			BlockCooldown:       viper.GetDuration("SECURITY_BLOCK_COOLDOWN"),
			SuspiciousAfter:     viper.GetInt("SECURITY_SUSPICIOUS_AFTER"),
			FailedCodesAlertMin: viper.GetInt("SECURITY_FAILED_CODES_ALERT_MIN"),
			RapidSignupAlertMin: viper.GetInt("SECURITY_RAPID_SIGNUP_ALERT_MIN"),
			EnumerationAlertMin: viper.GetInt("SECURITY_ENUMERATION_ALERT_MIN"),
			AlertWindow:         viper.GetDuration("SECURITY_ALERT_WINDOW"),
			AlertCooldown:       viper.GetDuration("SECURITY_ALERT_COOLDOWN"),
		},
	}, nil
}
