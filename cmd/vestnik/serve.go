package main

import (
	"github.com/spf13/cobra"

	"github.com/andreysafonov/vestnik/config"
	srv "github.com/andreysafonov/vestnik/internal/server"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot: scheduler, scrapers and admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return srv.Run(cfg)
		},
	}
	serve.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches ./config and .)")
	return serve
}
