package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/gammadia/freetier/config"
	"github.com/gammadia/freetier/provisioner/oci"
	"github.com/gammadia/freetier/runner/flags"
	"github.com/gammadia/freetier/runner/log"
	"github.com/gammadia/freetier/runner/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errValidation = errors.New("validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration, credentials and SSH key without creating anything",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ok := true
		check := func(passed bool, label, detail string) {
			ui.Check(out, passed, label, detail)
			ok = ok && passed
		}

		if envFileLoaded {
			check(true, "Env file", viper.GetString(flags.EnvFile))
		} else {
			ui.Warning(out, fmt.Sprintf("Env file '%s' not found, using flags and environment only", viper.GetString(flags.EnvFile)))
		}

		cfg, err := loadConfig()
		if err == nil {
			err = config.Validate(cfg)
		}
		check(err == nil, "Configuration", errorDetail(err))
		if err != nil {
			return errValidation
		}

		if cfg.Provider == config.ProviderOCI {
			path := oci.Config{ConfigFile: cfg.OCI.ConfigFile}.WithDefaults().ConfigFile
			_, err := os.Stat(path)
			check(err == nil, "OCI configuration file", path)
		}

		if _, err := os.Stat(cfg.SSHKeyFile); err == nil {
			_, err := readKey(cfg)
			check(err == nil, "SSH public key", lazyDetail(err, cfg.SSHKeyFile))
		} else {
			ui.Warning(out, fmt.Sprintf("SSH public key '%s' not found, a key pair will be generated", cfg.SSHKeyFile))
		}

		provider, policy, err := createProvider(cfg, log.Base)
		check(err == nil, "Provider credentials", lazyDetail(err, cfg.Provider))
		if err != nil {
			return errValidation
		}

		compliance, err := policy.Check(cfg, region(provider))
		check(err == nil, fmt.Sprintf("Compliance with the %s policy", policy.Name), errorDetail(err))
		for _, warning := range compliance.Warnings {
			ui.Warning(out, warning)
		}

		if !ok {
			return errValidation
		}
		return nil
	},
}

func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func lazyDetail(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
