package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valmere/tradesman/internal/config"
	"github.com/valmere/tradesman/internal/daemon"
	"github.com/valmere/tradesman/internal/surface"
)

const version = "0.3.0"

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "tradesman",
		Short:         "Marketplace automation daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	root.AddCommand(&cobra.Command{
		Use:   "daemon",
		Short: "Run the trading daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			d, err := daemon.New(cfg, surface.Disconnected())
			if err != nil {
				return err
			}
			return d.Run()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show open orders and recent operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), cfg)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the tradesman version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tradesman %s\n", version)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
