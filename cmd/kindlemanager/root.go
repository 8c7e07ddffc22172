package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sawyersteven/KindleManager-sub001/internal/config"
	"github.com/sawyersteven/KindleManager-sub001/internal/logging"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	cfg *config.Config
}

// flagOverrides maps persistent flags to the settings they override.
var flagOverrides = map[string]string{
	"debug": "log.debug",
	"human": "log.human",
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "kindlemanager",
		Short:        "Inspect, edit and catalog ePub and MOBI books",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			overrides := make(map[string]any)
			for flag, key := range flagOverrides {
				if cmd.Flags().Changed(flag) {
					v, _ := cmd.Flags().GetBool(flag)
					overrides[key] = v
				}
			}
			cfg, err := config.Load(path, overrides)
			if err != nil {
				return err
			}
			a.cfg = cfg
			logging.Init(cfg.Log.Debug, cfg.Log.Human)
			cmd.SetContext(logging.WithLogger(ctxOf(cmd), logging.WithPhase(cmd.Name())))
			return nil
		},
	}

	root.PersistentFlags().String("config", "", "config file (yaml, json, toml or ini)")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")
	root.PersistentFlags().Bool("human", false, "human-friendly log output instead of JSON")
	root.PersistentFlags().StringP("output", "o", "table", "output format: table or json")

	root.AddCommand(
		newInfoCmd(),
		newTextCmd(),
		newImagesCmd(),
		newSetCmd(),
		newScanCmd(a),
	)
	return root
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func outputFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}
