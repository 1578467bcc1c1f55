package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr            string        `env:"ADDR,default=:8008" validate:"required"`
	DBDriver        string        `env:"DB_DRIVER,default=sqlite3" validate:"oneof=sqlite3 postgres mysql"`
	DBURI           string        `env:"DB_URI,default=quachat.db" validate:"required"`
	LogLevel        string        `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn warning error"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS,default=*"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES,default=1048576" validate:"gt=0"`
	SearchLimit     int           `env:"SEARCH_LIMIT,default=50" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
	MetricsEnabled  bool          `env:"METRICS_ENABLED,default=true"`

	NameSecondName float64 `env:"NAMEGEN_SECOND_NAME,default=0.5" validate:"gte=0,lte=1"`
	NameUnderscore float64 `env:"NAMEGEN_UNDERSCORE,default=0.3" validate:"gte=0,lte=1"`
	NameLowercase  float64 `env:"NAMEGEN_LOWERCASE,default=0.5" validate:"gte=0,lte=1"`
	NameSuffix     float64 `env:"NAMEGEN_SUFFIX,default=0.3" validate:"gte=0,lte=1"`
}

var validate = validator.New()

// Load reads the optional dotenv files (".env" when none are given) into the process
// environment without overriding it, then decodes and validates the configuration.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("dotenv: %w", err)
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
