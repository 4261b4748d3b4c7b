package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/subosito/gotenv"
)

const defaultEnvFile = ".env"

type Config struct {
	Server      ServerConfig
	Upload      UploadConfig
	OpenAI      OpenAIConfig
	RedisConfig RedisConfig
	Log         LogConfig
	CacheEnable bool `env:"CACHE_ENABLE" envDefault:"false"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"REDIS_TTL" envDefault:"10m"`
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Timeout         time.Duration `env:"SERVER_TIMEOUT" envDefault:"2m"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ThrottleLimit   int           `env:"SERVER_THROTTLE_LIMIT" envDefault:"50"`
}

// UploadConfig bounds incoming images and says where they are spooled.
// An empty TempDir means os.TempDir().
type UploadConfig struct {
	MaxBytes int64  `env:"UPLOAD_MAX_BYTES" envDefault:"20971520"`
	TempDir  string `env:"UPLOAD_TEMP_DIR"`
}

type OpenAIConfig struct {
	APIKey           string `env:"OPENAI_API_KEY,notEmpty"`
	BaseURL          string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	Model            string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	MaxTokens        int64  `env:"OPENAI_MAX_TOKENS" envDefault:"1000"`
	MaxRetries       int    `env:"OPENAI_MAX_RETRIES" envDefault:"0"`
	ValidateResponse bool   `env:"OPENAI_VALIDATE_RESPONSE" envDefault:"false"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads the dotenv file named by ENV_FILE (".env" when unset), then
// parses the process environment. Variables already set in the environment
// are never overridden by the file, and a missing file is not an error.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = defaultEnvFile
	}
	if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.OpenAI.MaxTokens <= 0 {
		return nil, fmt.Errorf("OPENAI_MAX_TOKENS must be positive, got %d", cfg.OpenAI.MaxTokens)
	}
	if cfg.Upload.MaxBytes <= 0 {
		return nil, fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", cfg.Upload.MaxBytes)
	}
	return cfg, nil
}
