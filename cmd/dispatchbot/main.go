// Command dispatchbot runs the order intake and driver dispatch bot.
package main

import (
	"log"

	"github.com/m3rciful/dispatchbot/bot/config"
	"github.com/m3rciful/dispatchbot/bot/tgbot"
	"github.com/m3rciful/dispatchbot/core/cmd"
)

func main() {
	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(cfg cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			app, err := tgbot.Bootstrap(cfg.(*config.Config))
			if err != nil {
				return nil, err
			}
			return app, nil
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
