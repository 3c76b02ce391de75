package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Postgres struct {
		Host            string        `env:"DB_HOST" envDefault:"localhost"`
		Port            int           `env:"DB_PORT" envDefault:"5432"`
		User            string        `env:"DB_USER,required"`
		Password        string        `env:"DB_PASS,required"`
		Database        string        `env:"DB_NAME,required"`
		SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
		MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	}

	Redis struct {
		Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Telegram struct {
		BotToken       string `env:"BOT_TOKEN,required"`
		ChatID         int64  `env:"CHAT_ID,required"`
		ChannelID      int64  `env:"CHANNEL_ID,required"`
		AdminChannelID int64  `env:"ADMIN_CHANNEL_ID,required"`
	}

	Ton struct {
		TonAPIBase  string `env:"TONAPI_BASE" envDefault:"https://tonapi.io"`
		TonAPIToken string `env:"TONAPI_TOKEN" envDefault:""`
		DeDustBase  string `env:"DEDUST_BASE" envDefault:"https://api.dedust.io"`

		JettonAddr   string `env:"WON_ADDR,required"`
		JettonLPAddr string `env:"WON_LP_ADDR,required"`
	}

	Gating struct {
		ThresholdBalance   int64 `env:"THRESHOLD_BALANCE,required"`
		OGThresholdBalance int64 `env:"OG_THRESHOLD_BALANCE,required"`

		// Seconds between reconciliation passes.
		RefreshTimeout int `env:"REFRESH_TIMEOUT" envDefault:"59"`

		OGListPath      string `env:"OG_LIST_PATH" envDefault:"ogs.txt"`
		BlacklistPath   string `env:"BLACKLIST_PATH" envDefault:"blacklist.txt"`
		PriceMaxRetries int    `env:"PRICE_MAX_RETRIES" envDefault:"30"`
	}

	Connect struct {
		ManifestDomain string `env:"MANIFEST_DOMAIN" envDefault:"ton.app"`
		WebAppBase     string `env:"CONNECT_WEBAPP_BASE" envDefault:""`
	}
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User, c.Postgres.Password,
		c.Postgres.Database, c.Postgres.SSLMode)
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Gating.RefreshTimeout) * time.Second
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		// Игнорируем ошибку, если .env файл не найден
		// В production окружении переменные могут быть установлены напрямую
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}
