package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds process-wide settings loaded from the environment
type Config struct {
	TogetherAPIKey  string `env:"TOGETHER_API_KEY"`
	TogetherBaseURL string `env:"TOGETHER_BASE_URL" envDefault:"https://api.together.xyz/v1"`

	CaptionModel     string `env:"CAPTION_MODEL"      envDefault:"llava"`
	CaptionMaxTokens int    `env:"CAPTION_MAX_TOKENS" envDefault:"16"`
	CaptionInterval  int    `env:"CAPTION_INTERVAL"   envDefault:"30"`
	CaptionBatchSize int    `env:"CAPTION_BATCH_SIZE" envDefault:"4"`

	VisionModels      []string      `env:"VISION_MODELS"       envSeparator:"," envDefault:"meta-llama/Llama-3.2-11B-Vision-Instruct-Turbo,meta-llama/Llama-3.2-90B-Vision-Instruct-Turbo,meta-llama/Llama-Vision-Free,Qwen/Qwen2-VL-72B-Instruct"`
	VisionTemperature float64       `env:"VISION_TEMPERATURE"  envDefault:"0.2"`
	VisionPaceDelay   time.Duration `env:"VISION_PACE_DELAY"   envDefault:"1s"`
	VisionMinResults  int           `env:"VISION_MIN_RESULTS"  envDefault:"1"`

	SummaryBackend     string  `env:"SUMMARY_BACKEND"      envDefault:"together"`
	SummaryModel       string  `env:"SUMMARY_MODEL"        envDefault:"meta-llama/Meta-Llama-3-70B-Instruct-Turbo"`
	SummaryOllamaModel string  `env:"SUMMARY_OLLAMA_MODEL" envDefault:"llama3.2"`
	SummaryMaxTokens   int     `env:"SUMMARY_MAX_TOKENS"   envDefault:"1000"`
	SummaryTemperature float64 `env:"SUMMARY_TEMPERATURE"  envDefault:"0.5"`

	// local agent used when SUMMARY_BACKEND=ollama
	AgentBaseURL string `env:"AGENT_OLLAMA_URL"  envDefault:"http://localhost"`
	AgentPort    int    `env:"AGENT_OLLAMA_PORT" envDefault:"11434"`

	FrameDir string `env:"FRAME_DIR" envDefault:"frames"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file and then parses the environment
func Load(dotenvPaths ...string) (*Config, error) {
	if len(dotenvPaths) == 0 {
		dotenvPaths = []string{".env"}
	}
	for _, path := range dotenvPaths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("could not load %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no pipeline can run with
func (c *Config) Validate() error {
	switch {
	case c.CaptionMaxTokens <= 0:
		return fmt.Errorf("CAPTION_MAX_TOKENS must be positive, got %d", c.CaptionMaxTokens)
	case c.CaptionInterval <= 0:
		return fmt.Errorf("CAPTION_INTERVAL must be positive, got %d", c.CaptionInterval)
	case c.CaptionBatchSize <= 0:
		return fmt.Errorf("CAPTION_BATCH_SIZE must be positive, got %d", c.CaptionBatchSize)
	case c.VisionMinResults <= 0:
		return fmt.Errorf("VISION_MIN_RESULTS must be positive, got %d", c.VisionMinResults)
	case c.VisionPaceDelay < 0:
		return fmt.Errorf("VISION_PACE_DELAY must not be negative, got %s", c.VisionPaceDelay)
	}

	switch c.SummaryBackend {
	case "together", "ollama":
	default:
		return fmt.Errorf("unknown SUMMARY_BACKEND %q (want together or ollama)", c.SummaryBackend)
	}

	models := c.VisionModels[:0]
	for _, m := range c.VisionModels {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	c.VisionModels = models
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
