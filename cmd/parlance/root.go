package main

import (
	"fmt"
	"os"

	"github.com/aretw0/parlance/internal/config"
	"github.com/aretw0/parlance/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  = logging.NewNop()
)

// flagKeys maps command line flags to config keys. Only flags given on the
// command line override the config file and environment.
var flagKeys = map[string]string{
	"log-level":       "server.log_level",
	"addr":            "server.addr",
	"seed":            "flow.seed",
	"locale":          "speech.locale",
	"voice":           "speech.voice",
	"nlu":             "speech.nlu",
	"noinput-timeout": "speech.noinput_timeout",
	"redis-url":       "redis.url",
	"sqlite":          "transcript.sqlite_path",
}

var rootCmd = &cobra.Command{
	Use:   "parlance",
	Short: "Parlance runs spoken dialogue flows",
	Long: `Parlance drives turn-based voice conversations with a hierarchical state machine.
Flows are built in (appointment, intruder) or loaded from YAML files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv()
		v := config.New()
		applyFlags(cmd, v)
		c, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = c
		logger = logging.New(cfg.Level())
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
}

func applyFlags(cmd *cobra.Command, v *viper.Viper) {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}
	if f := cmd.Flags().Lookup("flow"); f != nil && f.Changed {
		setFlow(v, f.Value.String())
	}
}
