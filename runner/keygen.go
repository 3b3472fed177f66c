package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/gammadia/freetier/runner/flags"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Read or generate the SSH key authorized on acquired instances",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		key, err := readKey(cfg)
		if err != nil {
			return fmt.Errorf("failed to read SSH key from '%s': %w", viper.GetString(flags.SSHKeyFile), err)
		}

		if key.Generated {
			cmd.PrintErrln(color.HiGreenString("Generated a new %s key pair", viper.GetString(flags.SSHKeyType)))
			cmd.PrintErrf("Private key: %s\n", key.PrivateKeyFile)
		}
		cmd.PrintErrf("Public key: %s (%s)\n", key.PublicKeyFile, key.Fingerprint())
		cmd.Println(key.PublicKey)
		return nil
	},
}
