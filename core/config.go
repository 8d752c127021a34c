package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	ServerConfig struct {
		Host               string
		DebugHost          string
		JWTExpirationDelta time.Duration
		ShutdownTimeout    time.Duration
	}

	RedisConfig struct {
		Addr        string
		DB          int
		DialTimeout time.Duration
	}

	StorageConfig struct {
		Backend  string // local | gcs
		LocalDir string
		BaseURL  string
		Bucket   string
	}

	RemindersConfig struct {
		Schedule string // cron spec; empty disables the job
		Days     int
	}

	Config struct {
		AppName          string
		Env              string // DEV, TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		CatalogCacheTTL time.Duration

		Database  DatabaseConfig
		Server    ServerConfig
		Redis     RedisConfig
		Storage   StorageConfig
		Reminders RemindersConfig
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: "noreply@localhost"}
	}
	if addr.Name == "" {
		addr.Name = conf.AppName
	}
	return *addr
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Educa")
	v.SetDefault("secretKey", "9x$7c!pl2v&w0t#e@q_8m^rk1z(ahs5)d+4u6n=yjgbf3oi")
	v.SetDefault("defaultFromEmail", "Educa <noreply@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("catalogCacheTTL", 15*time.Minute)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "educa")
	v.SetDefault("dbUser", "educa")
	v.SetDefault("dbPassword", "educa")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("serverHost", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("shutdownTimeout", 5*time.Second)

	v.SetDefault("redisAddr", "")
	v.SetDefault("redisDB", 0)
	v.SetDefault("redisDialTimeout", 5*time.Second)

	v.SetDefault("storageBackend", "local")
	v.SetDefault("storageLocalDir", filepath.Join(os.TempDir(), "educa", "media"))
	v.SetDefault("storageBaseURL", "/media/")
	v.SetDefault("storageBucket", "")

	v.SetDefault("remindersSchedule", "0 9 * * *")
	v.SetDefault("remindersDays", 7)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		CatalogCacheTTL:  v.GetDuration("catalogCacheTTL"),
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Server: ServerConfig{
			Host:               v.GetString("serverHost"),
			DebugHost:          v.GetString("serverDebugHost"),
			JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
			ShutdownTimeout:    v.GetDuration("shutdownTimeout"),
		},
		Redis: RedisConfig{
			Addr:        v.GetString("redisAddr"),
			DB:          v.GetInt("redisDB"),
			DialTimeout: v.GetDuration("redisDialTimeout"),
		},
		Storage: StorageConfig{
			Backend:  v.GetString("storageBackend"),
			LocalDir: v.GetString("storageLocalDir"),
			BaseURL:  v.GetString("storageBaseURL"),
			Bucket:   v.GetString("storageBucket"),
		},
		Reminders: RemindersConfig{
			Schedule: v.GetString("remindersSchedule"),
			Days:     v.GetInt("remindersDays"),
		},
	}
}

// NewTestConfig returns a Config suited for tests: no external services, fixed secret.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Env = "TEST"
	conf.Debug = false
	conf.TestMode = true
	conf.SecretKey = "test-secret"
	conf.Redis.Addr = ""
	conf.Storage.Backend = "local"
	conf.Reminders.Schedule = ""
	return conf
}
