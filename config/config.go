package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type JWTConfig struct {
	AccessSecret    string        `mapstructure:"accessSecret"`
	RefreshSecret   string        `mapstructure:"refreshSecret"`
	AccessTokenTTL  time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL time.Duration `mapstructure:"refreshTokenTTL"`
	Issuer          string        `mapstructure:"issuer"`
	Audience        string        `mapstructure:"audience"`
}

type AuthConfig struct {
	EmailVerificationEnabled bool          `mapstructure:"emailVerificationEnabled"`
	BcryptCost               int           `mapstructure:"bcryptCost"`
	OTPLength                int           `mapstructure:"otpLength"`
	PasswordResetTTL         time.Duration `mapstructure:"passwordResetTTL"`
	LegacyPhoneFallback      bool          `mapstructure:"legacyPhoneFallback"`
	UserCacheTTL             time.Duration `mapstructure:"userCacheTTL"`
	// CacheDriver selects the login profile cache: "none", "memory" or "redis".
	CacheDriver    string   `mapstructure:"cacheDriver"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
	ResetURL       string   `mapstructure:"resetURL"`
	VerifyURL      string   `mapstructure:"verifyURL"`
}

type CleanupConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	PendingAge time.Duration `mapstructure:"pendingAge"`
}

type MessagingConfig struct {
	RabbitMQ struct {
		URL        string `mapstructure:"url"`
		EmailQueue string `mapstructure:"emailQueue"`
		SMSQueue   string `mapstructure:"smsQueue"`
	} `mapstructure:"rabbitmq"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
}

type SecurityConfig struct {
	CSRF struct {
		Enabled bool          `mapstructure:"enabled"`
		TTL     time.Duration `mapstructure:"ttl"`
		// Store is "memory" or "redis".
		Store string `mapstructure:"store"`
	} `mapstructure:"csrf"`
	RateLimit struct {
		Requests int           `mapstructure:"requests"`
		Window   time.Duration `mapstructure:"window"`
	} `mapstructure:"rateLimit"`
}

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port      string `mapstructure:"port"`
			CertFile  string `mapstructure:"certFile"`
			KeyFile   string `mapstructure:"keyFile"`
			EnableTLS bool   `mapstructure:"enableTLS"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
		Redis struct {
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Messaging MessagingConfig `mapstructure:"messaging"`
	Security  SecurityConfig  `mapstructure:"security"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")
	v.AddConfigPath("/usr/local/bin")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// JWT_ACCESSSECRET overrides jwt.accessSecret and so on.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	if err = config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// Validate rejects configurations the auth flows cannot run safely with.
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return errors.New("jwt access and refresh secrets must be set")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("jwt access and refresh secrets must differ")
	}
	if c.JWT.AccessTokenTTL <= 0 || c.JWT.RefreshTokenTTL <= 0 {
		return errors.New("jwt token TTLs must be positive")
	}
	if c.Auth.BcryptCost < 10 {
		return fmt.Errorf("auth.bcryptCost must be at least 10, got %d", c.Auth.BcryptCost)
	}
	if c.Auth.OTPLength < 6 || c.Auth.OTPLength > 10 {
		return fmt.Errorf("auth.otpLength must be between 6 and 10, got %d", c.Auth.OTPLength)
	}
	if c.Auth.PasswordResetTTL <= 0 {
		return errors.New("auth.passwordResetTTL must be positive")
	}
	if c.Cleanup.Enabled && (c.Cleanup.Interval <= 0 || c.Cleanup.PendingAge <= 0) {
		return errors.New("cleanup interval and pending age must be positive")
	}
	return nil
}
