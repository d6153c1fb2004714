package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		SecretKey    string
		RollbarToken string
		WorkDir      string

		Auth     authConfig
		Score    scoreConfig
		Server   serverConfig
		Database dbConfig
	}

	authConfig struct {
		TokenTTL           time.Duration
		PasswordIterations int
	}

	scoreConfig struct {
		PassLine        int
		ImportChunkSize int
	}

	serverConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	dbConfig struct {
		URL             string
		Engine          string
		Host            string
		Port            int
		Name            string
		User            string
		Password        string
		AdminUser       string
		AdminPassword   string
		DisableTLS      bool
		MaxOpenConns    int
		MaxIdleConns    int
		ConnMaxLifetime time.Duration
	}
)

func (c dbConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewConfig loads the configuration from defaults, `config/.env.<env>` and the environment.
// Variables are prefixed with the upper-cased env name (e.g. DEV_DATABASE_HOST).
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "develop")
	conf.SetDefault("appName", "cet-nextgen-api")
	conf.SetDefault("secretKey", "dev_change_me")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("auth.tokenTTL", 7*24*time.Hour)
	conf.SetDefault("auth.passwordIterations", 120000)

	conf.SetDefault("score.passLine", 425)
	conf.SetDefault("score.importChunkSize", 200)

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.address", ":3000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.disableReqLogs", false)

	conf.SetDefault("database.url", "")
	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.name", "cet_nextgen")
	conf.SetDefault("database.user", "cet")
	conf.SetDefault("database.password", "cet")
	conf.SetDefault("database.adminUser", "")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", true)
	conf.SetDefault("database.maxOpenConns", 20)
	conf.SetDefault("database.maxIdleConns", 5)
	conf.SetDefault("database.connMaxLifetime", 30*time.Minute)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
		conf.SetDefault("debug", false)
	case "PROD":
		conf.SetDefault("debug", false)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

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
	conf.AutomaticEnv()

	// well-known unprefixed names
	_ = conf.BindEnv("secretKey", env+"_SECRETKEY", "JWT_SECRET")
	_ = conf.BindEnv("database.url", env+"_DATABASE_URL", "DATABASE_URL")
	_ = conf.BindEnv("rollbarToken", env+"_ROLLBARTOKEN", "ROLLBAR_TOKEN")

	return &Config{
		Env:          env,
		Build:        conf.GetString("build"),
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		AppName:      conf.GetString("appName"),
		SecretKey:    conf.GetString("secretKey"),
		RollbarToken: conf.GetString("rollbarToken"),
		WorkDir:      wd,
		Auth: authConfig{
			TokenTTL:           conf.GetDuration("auth.tokenTTL"),
			PasswordIterations: conf.GetInt("auth.passwordIterations"),
		},
		Score: scoreConfig{
			PassLine:        conf.GetInt("score.passLine"),
			ImportChunkSize: conf.GetInt("score.importChunkSize"),
		},
		Server: serverConfig{
			Host:            conf.GetString("server.host"),
			Address:         conf.GetString("server.address"),
			DebugHost:       conf.GetString("server.debugHost"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  conf.GetBool("server.disableReqLogs"),
		},
		Database: dbConfig{
			URL:             conf.GetString("database.url"),
			Engine:          conf.GetString("database.engine"),
			Host:            conf.GetString("database.host"),
			Port:            conf.GetInt("database.port"),
			Name:            conf.GetString("database.name"),
			User:            conf.GetString("database.user"),
			Password:        conf.GetString("database.password"),
			AdminUser:       conf.GetString("database.adminUser"),
			AdminPassword:   conf.GetString("database.adminPassword"),
			DisableTLS:      conf.GetBool("database.disableTLS"),
			MaxOpenConns:    conf.GetInt("database.maxOpenConns"),
			MaxIdleConns:    conf.GetInt("database.maxIdleConns"),
			ConnMaxLifetime: conf.GetDuration("database.connMaxLifetime"),
		},
	}
}

// String hides secrets; used when logging the startup config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"env=%s build=%s debug=%v app=%s server=%s db=%s/%s",
		c.Env, c.Build, c.Debug, c.AppName, c.Server.Address, c.Database.Address(), c.Database.Name,
	)
}
