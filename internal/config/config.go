// Package config содержит логику чтения конфигурации сервиса обедов.
package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/mmeshcher/lunchorder-system/internal/model"
)

// Значения по умолчанию для тюнингов расписания.
const (
	DefaultTimezone             = "Europe/Moscow"
	DefaultDeliverySlots        = "12:00,13:00,18:45"
	DefaultOrderLeadMinutes     = 150
	DefaultLobbyLeadMinutes     = 150
	DefaultMinLobbyParticipants = 2
	DefaultCheckIntervalSeconds = 60
)

// Config содержит параметры конфигурации сервиса обедов.
type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseURI   string `env:"DATABASE_URI"`
	TelegramToken string `env:"TELEGRAM_TOKEN"`
	Timezone      string `env:"TIMEZONE"`

	DeliverySlots        string `env:"DELIVERY_SLOTS"`
	OrderLeadMinutes     int    `env:"ORDER_LEAD_MINUTES" envDefault:"150"`
	LobbyLeadMinutes     int    `env:"LOBBY_LEAD_MINUTES" envDefault:"150"`
	MinLobbyParticipants int    `env:"MIN_LOBBY_PARTICIPANTS" envDefault:"2"`
	CheckIntervalSeconds int    `env:"CHECK_INTERVAL_SECONDS" envDefault:"60"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envTelegramToken := cfg.TelegramToken
	envTimezone := cfg.Timezone
	envDeliverySlots := cfg.DeliverySlots

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.TelegramToken, "t", "", "telegram bot token")
	flag.StringVar(&cfg.Timezone, "z", DefaultTimezone, "IANA timezone for slot deadlines")
	flag.StringVar(&cfg.DeliverySlots, "s", DefaultDeliverySlots, "comma-separated delivery slots HH:MM")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envTelegramToken != "" {
		cfg.TelegramToken = envTelegramToken
	}
	if envTimezone != "" {
		cfg.Timezone = envTimezone
	}
	if envDeliverySlots != "" {
		cfg.DeliverySlots = envDeliverySlots
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.DeliverySlots == "" {
		cfg.DeliverySlots = DefaultDeliverySlots
	}
	if cfg.MinLobbyParticipants < 1 {
		return nil, fmt.Errorf("min lobby participants must be positive, got %d", cfg.MinLobbyParticipants)
	}
	if cfg.CheckIntervalSeconds < 1 {
		return nil, fmt.Errorf("check interval must be positive, got %d", cfg.CheckIntervalSeconds)
	}

	return cfg, nil
}

// Slots возвращает список слотов доставки из конфигурации.
func (c *Config) Slots() []model.Slot {
	parts := strings.Split(c.DeliverySlots, ",")

	slots := make([]model.Slot, 0, len(parts))
	for _, p := range parts {
		id := strings.TrimSpace(p)
		if id == "" {
			continue
		}
		slots = append(slots, model.Slot{ID: id, Time: id})
	}
	return slots
}
