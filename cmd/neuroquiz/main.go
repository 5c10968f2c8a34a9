// Command neuroquiz runs the quiz bot.
package main

import (
	"context"
	"fmt"
	"log"

	corecmd "github.com/m3rciful/neuroquiz/core/cmd"
	"github.com/m3rciful/neuroquiz/internal/app"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config/config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: func(ctx context.Context, c corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := c.(*app.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", c)
			}
			a, err := app.Bootstrap(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
