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
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite file
	}

	CacheConfig struct {
		Engine              string // redis | memory
		RedisAddr           string
		RedisPassword       string
		RedisDB             int
		CourseListTTL       time.Duration
		CourseDetailTTL     time.Duration
		EnrollmentListTTL   time.Duration
		EnrollmentDetailTTL time.Duration
	}

	WorkerConfig struct {
		Concurrency int
		QueueSize   int
	}

	TelemetryConfig struct {
		OTLPEndpoint string // tracing is disabled when empty
		SampleRatio  float64
	}

	Config struct {
		Env              string
		Debug            bool
		TestMode         bool
		AppName          string
		Build            string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		Server    ServerConfig
		Database  DatabaseConfig
		Cache     CacheConfig
		Worker    WorkerConfig
		Telemetry TelemetryConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewConfig reads the app configuration from the environment, optionally loaded from `config/.env.<env>`.
// Environment variables are prefixed with the uppercased env name, e.g. DEV_DATABASE_NAME.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Academia")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k3q9-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromName", "Academia")
	v.SetDefault("defaultFromEmail", "system@academia.local")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_address", ":8000")
	v.SetDefault("server_debugHost", ":4000")
	v.SetDefault("server_shutdownTimeout", 5*time.Second)
	v.SetDefault("server_jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server_jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", 5432)
	v.SetDefault("database_name", "academia")
	v.SetDefault("database_user", "academia")
	v.SetDefault("database_password", "")
	v.SetDefault("database_adminUser", "postgres")
	v.SetDefault("database_adminPassword", "")
	v.SetDefault("database_disableTLS", true)
	v.SetDefault("database_path", "academia.db")

	v.SetDefault("cache_engine", "memory")
	v.SetDefault("cache_redisAddr", "localhost:6379")
	v.SetDefault("cache_redisPassword", "")
	v.SetDefault("cache_redisDB", 0)
	v.SetDefault("cache_courseListTTL", 15*time.Minute)
	v.SetDefault("cache_courseDetailTTL", 15*time.Minute)
	v.SetDefault("cache_enrollmentListTTL", 30*time.Minute)
	v.SetDefault("cache_enrollmentDetailTTL", 15*time.Minute)

	v.SetDefault("worker_concurrency", 4)
	v.SetDefault("worker_queueSize", 256)

	v.SetDefault("telemetry_otlpEndpoint", "")
	v.SetDefault("telemetry_sampleRatio", 1.0)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	env = strings.ToUpper(env)
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		Env:             env,
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		Build:           v.GetString("build"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("defaultFromName"),
			Address: v.GetString("defaultFromEmail"),
		},
		SendgridApiKey: v.GetString("sendgridApiKey"),
		RollbarToken:   v.GetString("rollbarToken"),

		Server: ServerConfig{
			Host:                      v.GetString("server_host"),
			Address:                   v.GetString("server_address"),
			DebugHost:                 v.GetString("server_debugHost"),
			ShutdownTimeout:           v.GetDuration("server_shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server_jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server_jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database_engine"),
			Host:          v.GetString("database_host"),
			Port:          v.GetInt("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_adminUser"),
			AdminPassword: v.GetString("database_adminPassword"),
			DisableTLS:    v.GetBool("database_disableTLS"),
			Path:          v.GetString("database_path"),
		},
		Cache: CacheConfig{
			Engine:              v.GetString("cache_engine"),
			RedisAddr:           v.GetString("cache_redisAddr"),
			RedisPassword:       v.GetString("cache_redisPassword"),
			RedisDB:             v.GetInt("cache_redisDB"),
			CourseListTTL:       v.GetDuration("cache_courseListTTL"),
			CourseDetailTTL:     v.GetDuration("cache_courseDetailTTL"),
			EnrollmentListTTL:   v.GetDuration("cache_enrollmentListTTL"),
			EnrollmentDetailTTL: v.GetDuration("cache_enrollmentDetailTTL"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("worker_concurrency"),
			QueueSize:   v.GetInt("worker_queueSize"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: v.GetString("telemetry_otlpEndpoint"),
			SampleRatio:  v.GetFloat64("telemetry_sampleRatio"),
		},
	}
}

// NewTestConfig returns the configuration used by tests: debug output, in-memory cache & SQLite store.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Env = "TEST"
	conf.TestMode = true
	conf.Database.Engine = "sqlite"
	conf.Cache.Engine = "memory"
	return conf
}
