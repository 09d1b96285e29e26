package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
		ShutdownTimeout           time.Duration
		MaxUploadSize             int64
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
		MaxIdleConns  int
	}

	RedisConfig struct {
		Address  string
		Password string
		DB       int
	}

	StorageConfig struct {
		Driver           string // local | b2
		Dir              string
		B2AccountID      string
		B2ApplicationKey string
		B2Bucket         string
	}

	NotificationConfig struct {
		EmailEnabled  bool
		Retention     time.Duration
		PurgeSchedule string
	}

	RateLimitConfig struct {
		Requests int
		Window   time.Duration
	}

	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		UnknownLabel     string
		RollbarToken     string
		SendgridApiKey   string
		Server           ServerConfig
		Database         DatabaseConfig
		Redis            RedisConfig
		Storage          StorageConfig
		Notification     NotificationConfig
		RateLimit        RateLimitConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewConfig loads the app configuration from defaults, `config/.env.<env>` and the environment.
func NewConfig() *Config {
	conf := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", env == "DEV" || env == "TEST")
	conf.SetDefault("testMode", env == "TEST")
	conf.SetDefault("appName", "School")
	conf.SetDefault("build", "dev")
	conf.SetDefault("secretKey", "k3n#v0-8u@x!s2r(6w&9lq%p)d_fz^j+y1m*c4te7o5hg")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromName", "School")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("unknownLabel", "نامشخص")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")

	conf.SetDefault("serverHost", ":8000")
	conf.SetDefault("serverDebugHost", ":4000")
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	conf.SetDefault("shutdownTimeout", 5*time.Second)
	conf.SetDefault("maxUploadSize", int64(10<<20))

	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", 5432)
	conf.SetDefault("dbName", "school")
	conf.SetDefault("dbUser", "school")
	conf.SetDefault("dbPassword", "school")
	conf.SetDefault("dbAdminUser", "postgres")
	conf.SetDefault("dbAdminPassword", "")
	conf.SetDefault("dbDisableTLS", true)
	conf.SetDefault("dbMaxOpenConns", 25)
	conf.SetDefault("dbMaxIdleConns", 5)

	conf.SetDefault("redisAddress", "")
	conf.SetDefault("redisPassword", "")
	conf.SetDefault("redisDB", 0)

	conf.SetDefault("storageDriver", "local")
	conf.SetDefault("storageDir", "uploads")
	conf.SetDefault("b2AccountID", "")
	conf.SetDefault("b2ApplicationKey", "")
	conf.SetDefault("b2Bucket", "")

	conf.SetDefault("notificationEmailEnabled", false)
	conf.SetDefault("notificationRetention", 90*24*time.Hour)
	conf.SetDefault("notificationPurgeSchedule", "@daily")

	conf.SetDefault("rateLimitRequests", 10)
	conf.SetDefault("rateLimitWindow", time.Minute)

	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		AppName:         conf.GetString("appName"),
		Env:             env,
		Build:           conf.GetString("build"),
		Debug:           conf.GetBool("debug"),
		TestMode:        conf.GetBool("testMode"),
		SecretKey:       conf.GetString("secretKey"),
		FrontendBaseURL: conf.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{
			Name:    conf.GetString("defaultFromName"),
			Address: conf.GetString("defaultFromEmail"),
		},
		UnknownLabel:   conf.GetString("unknownLabel"),
		RollbarToken:   conf.GetString("rollbarToken"),
		SendgridApiKey: conf.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:                      conf.GetString("serverHost"),
			DebugHost:                 conf.GetString("serverDebugHost"),
			JWTExpirationDelta:        conf.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("jwtRefreshExpirationDelta"),
			PasswordResetTimeoutDelta: conf.GetDuration("passwordResetTimeoutDelta"),
			ShutdownTimeout:           conf.GetDuration("shutdownTimeout"),
			MaxUploadSize:             conf.GetInt64("maxUploadSize"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("dbEngine"),
			Host:          conf.GetString("dbHost"),
			Port:          conf.GetInt("dbPort"),
			Name:          conf.GetString("dbName"),
			User:          conf.GetString("dbUser"),
			Password:      conf.GetString("dbPassword"),
			AdminUser:     conf.GetString("dbAdminUser"),
			AdminPassword: conf.GetString("dbAdminPassword"),
			DisableTLS:    conf.GetBool("dbDisableTLS"),
			MaxOpenConns:  conf.GetInt("dbMaxOpenConns"),
			MaxIdleConns:  conf.GetInt("dbMaxIdleConns"),
		},
		Redis: RedisConfig{
			Address:  conf.GetString("redisAddress"),
			Password: conf.GetString("redisPassword"),
			DB:       conf.GetInt("redisDB"),
		},
		Storage: StorageConfig{
			Driver:           conf.GetString("storageDriver"),
			Dir:              conf.GetString("storageDir"),
			B2AccountID:      conf.GetString("b2AccountID"),
			B2ApplicationKey: conf.GetString("b2ApplicationKey"),
			B2Bucket:         conf.GetString("b2Bucket"),
		},
		Notification: NotificationConfig{
			EmailEnabled:  conf.GetBool("notificationEmailEnabled"),
			Retention:     conf.GetDuration("notificationRetention"),
			PurgeSchedule: conf.GetString("notificationPurgeSchedule"),
		},
		RateLimit: RateLimitConfig{
			Requests: conf.GetInt("rateLimitRequests"),
			Window:   conf.GetDuration("rateLimitWindow"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: no environment lookups, debug off.
func NewTestConfig() *Config {
	return &Config{
		AppName:          "School",
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "School", Address: "noreply@localhost"},
		UnknownLabel:     "unknown",
		Server: ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
			ShutdownTimeout:           time.Second,
			MaxUploadSize:             1 << 20,
		},
		Storage:      StorageConfig{Driver: "local"},
		Notification: NotificationConfig{Retention: 24 * time.Hour, PurgeSchedule: "@daily"},
		RateLimit:    RateLimitConfig{Requests: 5, Window: time.Minute},
	}
}
