package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/gammadia/freetier/runner/flags"
	"github.com/gammadia/freetier/runner/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Versioning information set at build time
var version, commit = "dev", "n/a"

// Whether the env file was found and merged
var envFileLoaded bool

var freetierCmd = &cobra.Command{
	Use:   "freetier",
	Short: "Freetier acquires always-free cloud instances despite scarce capacity.",

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		if envFileLoaded, err = flags.LoadEnvFile(viper.GetString(flags.EnvFile)); err != nil {
			return err
		}
		return log.Init()
	},

	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return log.Close()
	},
}

func init() {
	freetierCmd.AddCommand(keygenCmd)
	freetierCmd.AddCommand(locationsCmd)
	freetierCmd.AddCommand(runCmd)
	freetierCmd.AddCommand(validateCmd)
	freetierCmd.AddCommand(versionCmd)

	flags.Register(freetierCmd.PersistentFlags())
	flags.Bind(freetierCmd.PersistentFlags())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	freetierCmd.SetOut(os.Stdout)
	if err := freetierCmd.ExecuteContext(ctx); err != nil {
		lo.Must(fmt.Fprintln(os.Stderr, color.HiRedString(fmt.Sprint(err))))
		os.Exit(1)
	}
}
