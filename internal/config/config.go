package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const EnvProduction = "production"

type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBDriver      string `env:"DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"auth_center.db"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	JWTSecret            string        `env:"JWT_SECRET"`
	AccessTokenTTL       time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`
	RefreshTokenTTL      time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"336h"`
	AuthorizationCodeTTL time.Duration `env:"AUTHORIZATION_CODE_TTL" envDefault:"5m"`
	TokenSweepInterval   time.Duration `env:"TOKEN_SWEEP_INTERVAL" envDefault:"10m"`

	VerificationCodeTTL    time.Duration `env:"VERIFICATION_CODE_TTL" envDefault:"5m"`
	VerificationGrace      time.Duration `env:"VERIFICATION_CONSUME_GRACE" envDefault:"1s"`
	VerificationCodeLength int           `env:"VERIFICATION_CODE_LENGTH" envDefault:"5"`
	ClientSecretLength     int           `env:"CLIENT_SECRET_LENGTH" envDefault:"20"`

	RedisURL string `env:"REDIS_URL"`

	AMQPURL       string `env:"AMQP_URL"`
	AMQPMailQueue string `env:"AMQP_MAIL_QUEUE" envDefault:"auth.mail_codes"`
	AMQPSMSQueue  string `env:"AMQP_SMS_QUEUE" envDefault:"auth.sms_codes"`

	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaUserTopic   string   `env:"KAFKA_USER_TOPIC" envDefault:"auth.users"`
	KafkaClientTopic string   `env:"KAFKA_CLIENT_TOPIC" envDefault:"auth.clients"`

	BootstrapAdminClientID     string `env:"BOOTSTRAP_ADMIN_CLIENT_ID"`
	BootstrapAdminClientSecret string `env:"BOOTSTRAP_ADMIN_CLIENT_SECRET"`
	BootstrapAdminEmail        string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword     string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
}

// Load reads secrets, the .env file and finally the process environment.
func Load() (*Config, error) {
	if err := loadAWSSecretsIntoEnv(); err != nil {
		log.Printf("Notice: skipping AWS Secrets Manager: %v", err)
	}

	envFile := os.Getenv("ENV_FILE_PATH")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("Notice: %s file not found: %v. Using system environment variables", envFile, err)
	}

	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Production() bool { return c.Env == EnvProduction }

func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for DB_DRIVER=postgres"))
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.Production() && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if c.VerificationCodeLength < 4 {
		errs = append(errs, errors.New("VERIFICATION_CODE_LENGTH must be at least 4"))
	}
	if c.ClientSecretLength < 8 {
		errs = append(errs, errors.New("CLIENT_SECRET_LENGTH must be at least 8"))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.AuthorizationCodeTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	return errors.Join(errs...)
}

// SigningKey falls back to a fixed development key outside production.
func (c *Config) SigningKey() []byte {
	if c.JWTSecret == "" {
		return []byte("auth-center-dev-secret")
	}
	return []byte(c.JWTSecret)
}
