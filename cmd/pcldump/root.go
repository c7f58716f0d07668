package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wudi/pclkit/config"
)

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"format":    "dump.format",
	"filter":    "dump.filter",
	"stats":     "dump.stats",
	"show-data": "dump.show_data",
	"serial":    "serial.port",
	"baud":      "serial.baud_rate",
	"log-level": "logging.level",
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "pcldump [flags] <file>...",
		Short: "Decode PCL and PJL print jobs",
		Long: `pcldump tokenizes PCL 5 and PJL print jobs and prints every command with
its byte offset, e.g. "<esc>&l0S@0".

Input is read from files or captured from a serial line (--serial). Output
formats are text, json (one object per line) and html.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(v, cfgFile)
			if err != nil {
				return err
			}
			switch {
			case cfg.Serial.Port != "" && len(args) > 0:
				return errors.New("files and --serial are mutually exclusive")
			case cfg.Serial.Port == "" && len(args) == 0:
				return errors.New("no input: pass files or --serial")
			}
			return run(cmd.Context(), cfg, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML)")
	flags.String("format", "text", "output format: text, json or html")
	flags.String("filter", "", `JavaScript expression selecting commands, e.g. 'cmd.kind == "pjl"'`)
	flags.Bool("stats", false, "print command statistics after the dump")
	flags.Bool("show-data", false, "include binary payloads as hex")
	flags.String("serial", "", "capture from this serial port instead of files")
	flags.Int("baud", 9600, "serial baud rate")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")

	if err := bindFlags(v, flags); err != nil {
		panic(err)
	}
	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
