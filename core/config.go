package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Addr                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	// MailConfig configures the mail transport and the Notification Gateway.
	// Backend is one of "console", "smtp" or "sendgrid".
	MailConfig struct {
		Backend    string
		Host       string
		Port       int
		Username   string
		Password   string
		TLSMode    string // "auto" | "starttls" | "ssl" | "none"
		BatchSize  int
		MaxRetries int
		RetryDelay time.Duration
	}

	MemberConfig struct {
		PictureUploadWindow   time.Duration
		PictureReminderWindow time.Duration
	}

	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		AppName          string
		SecretKey        string
		WorkDir          string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Mail     MailConfig
		Member   MemberConfig
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// NewConfig loads the app configuration from the environment
// (and config/.env.<env> if it exists), with DEV defaults.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Klabu")
	v.SetDefault("secretKey", "w3=kl@bu#t(ch-ku+7hink/2025*ni-sisi&hapa^ndio$mwanzo")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseName", "klabu")
	v.SetDefault("databaseUser", "klabu")
	v.SetDefault("databasePassword", "klabu")
	v.SetDefault("databaseAdminUser", "")
	v.SetDefault("databaseAdminPassword", "")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", "5432")
	v.SetDefault("databaseDisableTLS", true)

	v.SetDefault("mailBackend", "console")
	v.SetDefault("mailHost", "")
	v.SetDefault("mailPort", 587)
	v.SetDefault("mailUsername", "")
	v.SetDefault("mailPassword", "")
	v.SetDefault("mailTLSMode", "auto")
	v.SetDefault("mailBatchSize", 100)
	v.SetDefault("mailMaxRetries", 3)
	v.SetDefault("mailRetryDelay", time.Second)

	v.SetDefault("pictureUploadWindow", 72*time.Hour)
	v.SetDefault("pictureReminderWindow", 24*time.Hour)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	var testMode bool
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		testMode = true
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         testMode,
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		WorkDir:          wd,
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Addr:                      v.GetString("serverAddr"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("databaseEngine"),
			Name:          v.GetString("databaseName"),
			User:          v.GetString("databaseUser"),
			Password:      v.GetString("databasePassword"),
			AdminUser:     v.GetString("databaseAdminUser"),
			AdminPassword: v.GetString("databaseAdminPassword"),
			Host:          v.GetString("databaseHost"),
			Port:          v.GetString("databasePort"),
			DisableTLS:    v.GetBool("databaseDisableTLS"),
		},
		Mail: MailConfig{
			Backend:    v.GetString("mailBackend"),
			Host:       v.GetString("mailHost"),
			Port:       v.GetInt("mailPort"),
			Username:   v.GetString("mailUsername"),
			Password:   v.GetString("mailPassword"),
			TLSMode:    v.GetString("mailTLSMode"),
			BatchSize:  v.GetInt("mailBatchSize"),
			MaxRetries: v.GetInt("mailMaxRetries"),
			RetryDelay: v.GetDuration("mailRetryDelay"),
		},
		Member: MemberConfig{
			PictureUploadWindow:   v.GetDuration("pictureUploadWindow"),
			PictureReminderWindow: v.GetDuration("pictureReminderWindow"),
		},
	}
}
