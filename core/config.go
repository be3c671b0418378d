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
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// devSecretKey signs tokens in DEV and TEST only.
const devSecretKey = "x7k$2m!qz+4w9@v1n#e8r0(t)y5u3i6o_p-a=s&d*f"

var ErrMissingSecretKey = errors.New("secret_key must be set outside DEV and TEST")

type (
	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Password PasswordConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		SessionCookie             string
		SecureCookie              bool
	}

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

	PasswordConfig struct {
		MinLength int
		HashCost  int
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig loads the application configuration from the environment.
// `ENV` selects the environment (DEV by default) and is used as the variables' prefix, eg. DEV_SECRET_KEY.
// A `config/.env.<env>` file is loaded first when it exists.
// Exits when the loaded configuration is not usable in the selected environment.
func NewConfig() *Config {
	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	loadDotEnv(env)

	conf := readConfig(env)
	if err := conf.Validate(); err != nil {
		log.Fatalf("config.Validate(%s): %v", env, err)
	}
	return conf
}

func readConfig(env string) *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v, env)
	v.AutomaticEnv()

	appName := v.GetString("app_name")
	return &Config{
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("test_mode"),
		Env:             env,
		Build:           v.GetString("build"),
		AppName:         appName,
		SecretKey:       v.GetString("secret_key"),
		FrontendBaseURL: strings.TrimSuffix(v.GetString("frontend_base_url"), "/"),
		DefaultFromEmail: mail.Address{
			Name:    appName,
			Address: v.GetString("default_from_email"),
		},
		SendgridApiKey: v.GetString("sendgrid_api_key"),
		RollbarToken:   v.GetString("rollbar_token"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debug_host"),
			ShutdownTimeout:           v.GetDuration("server.shutdown_timeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwt_refresh_expiration_delta"),
			SessionCookie:             v.GetString("server.session_cookie"),
			SecureCookie:              v.GetBool("server.secure_cookie"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.admin_user"),
			AdminPassword: v.GetString("database.admin_password"),
			DisableTLS:    v.GetBool("database.disable_tls"),
		},
		Password: PasswordConfig{
			MinLength: v.GetInt("password.min_length"),
			HashCost:  v.GetInt("password.hash_cost"),
		},
	}
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("test_mode", env == "TEST")
	v.SetDefault("build", "develop")
	v.SetDefault("app_name", "MindZed")
	if isLocalEnv(env) {
		v.SetDefault("secret_key", devSecretKey)
	} else {
		v.SetDefault("secret_key", "")
	}
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("default_from_email", "noreply@localhost")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("rollbar_token", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debug_host", ":4000")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.jwt_expiration_delta", 30*24*time.Hour)
	v.SetDefault("server.jwt_refresh_expiration_delta", 90*24*time.Hour)
	v.SetDefault("server.session_cookie", "mindzed_session")
	v.SetDefault("server.secure_cookie", !isLocalEnv(env))

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "attendance")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.admin_user", "")
	v.SetDefault("database.admin_password", "")
	v.SetDefault("database.disable_tls", isLocalEnv(env))

	v.SetDefault("password.min_length", 8)
	v.SetDefault("password.hash_cost", 12)
}

func isLocalEnv(env string) bool {
	return env == "DEV" || env == "TEST"
}

// Validate rejects settings that are only acceptable on a developer machine.
func (c *Config) Validate() error {
	key := strings.TrimSpace(c.SecretKey)
	if key == "" {
		return ErrMissingSecretKey
	}
	if !isLocalEnv(c.Env) && key == devSecretKey {
		return errors.Wrap(ErrMissingSecretKey, "the development key cannot be used")
	}
	return nil
}

// loadDotEnv loads config/.env.<env> if it exists (ignored if it does not)
func loadDotEnv(env string) {
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "config"
	}
	dotEnvPath := filepath.Join(dir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
}

// NewTestConfig returns a Config suitable for tests: no external services, fast hashing.
func NewTestConfig() *Config {
	return &Config{
		TestMode:         true,
		Env:              "TEST",
		Build:            "test",
		AppName:          "MindZed",
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "MindZed", Address: "noreply@localhost"},
		Server: ServerConfig{
			Host:                      "localhost",
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			SessionCookie:             "mindzed_session",
		},
		Password: PasswordConfig{
			MinLength: 8,
			HashCost:  4, // bcrypt.MinCost
		},
	}
}
