package main

import (
	"github.com/spf13/viper"
)

// AppConfig holds the environment-driven settings that are not worth a flag:
// where the trade journal lives and how to reach the telegram bot.
type AppConfig struct {
	StoragePath string
	Telegram    TelegramConfig
}

// TelegramConfig holds the bot credentials and the single user allowed to
// talk to it.
type TelegramConfig struct {
	Enabled bool
	Token   string
	UserID  int64
}

func loadAppConfig() AppConfig {
	viper.AutomaticEnv()

	viper.SetDefault("STORAGE_PATH", "./fuzzywheel.db")
	viper.SetDefault("TELEGRAM_ENABLED", false)

	return AppConfig{
		StoragePath: viper.GetString("STORAGE_PATH"),
		Telegram: TelegramConfig{
			Enabled: viper.GetBool("TELEGRAM_ENABLED"),
			Token:   viper.GetString("TELEGRAM_TOKEN"),
			UserID:  viper.GetInt64("TELEGRAM_USER"),
		},
	}
}
