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
	Config struct {
		Debug    bool
		TestMode bool
		Env      string // DEV (default), TEST, QA, PROD
		Build    string
		AppName  string
		WorkDir  string

		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Fees     FeesConfig
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	FeesConfig struct {
		// AgentName tags every audit entry written by the automation runner.
		AgentName string
		// RunLogRetention caps the "recent runs" view of the audit log.
		RunLogRetention int
		// DefaultProgram & DefaultYear seed accounts created implicitly by a
		// first payment for an unseen regNo.
		DefaultProgram string
		DefaultYear    int
	}
)

func (c DatabaseConfig) Address() string { return c.Host + ":" + c.Port }

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Campus")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", "localhost:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseName", "campus")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", "5432")
	v.SetDefault("databaseDisableTLS", true)
	v.SetDefault("feesAgentName", "Finance Agent")
	v.SetDefault("feesRunLogRetention", 24)
	v.SetDefault("feesDefaultProgram", "B.Tech")
	v.SetDefault("feesDefaultYear", 1)

	env := os.Getenv("ENV")
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
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
		Debug:    v.GetBool("debug"),
		TestMode: env == "TEST",
		Env:      env,
		Build:    v.GetString("build"),
		AppName:  v.GetString("appName"),
		WorkDir:  wd,

		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),

		Server: ServerConfig{
			Host:            v.GetString("serverHost"),
			Address:         v.GetString("serverAddress"),
			DebugHost:       v.GetString("serverDebugHost"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("databaseEngine"),
			Name:          v.GetString("databaseName"),
			Host:          v.GetString("databaseHost"),
			Port:          v.GetString("databasePort"),
			User:          v.GetString("databaseUser"),
			Password:      v.GetString("databasePassword"),
			AdminUser:     v.GetString("databaseAdminUser"),
			AdminPassword: v.GetString("databaseAdminPassword"),
			DisableTLS:    v.GetBool("databaseDisableTLS"),
		},
		Fees: FeesConfig{
			AgentName:       v.GetString("feesAgentName"),
			RunLogRetention: v.GetInt("feesRunLogRetention"),
			DefaultProgram:  v.GetString("feesDefaultProgram"),
			DefaultYear:     v.GetInt("feesDefaultYear"),
		},
	}
}
