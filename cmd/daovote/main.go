package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tocipoco/DAO-Vote/log"
)

var cfg *Config

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "daovote",
		Short:         "confidential DAO voting node and dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if cfg, err = loadConfig(cmd.Flags()); err != nil {
				return err
			}
			log.Init(cfg.Log.Level, cfg.Log.Output, nil)
			return nil
		},
	}
	addGlobalFlags(root.PersistentFlags())
	root.AddCommand(serveCommand(), demoCommand(), keygenCommand())
	return root
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
