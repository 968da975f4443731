package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Env is the environment-level configuration: credentials and addresses that
// never change while the process runs. Tunables live in the optional Tuning
// file so they can be reloaded without a restart.
type Env struct {
	Token       string `env:"BOT_TOKEN,required"`
	AdminID     int64  `env:"ADMIN_ID,required"`
	Channel     string `env:"CHANNEL_USERNAME"`
	WebhookBase string `env:"WEBHOOK_URL,required"`
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":8000"`
	DBPath      string `env:"DB_PATH" envDefault:"./clipbot.db"`
	ScratchDir  string `env:"SCRATCH_DIR" envDefault:"./downloads"`
	TuningPath  string `env:"TUNING_FILE"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"LOG_FILE"`
}

func LoadEnv() (*Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &e, nil
}
