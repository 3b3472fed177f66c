package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gammadia/freetier/acquirer"
	"github.com/gammadia/freetier/artifacts"
	"github.com/gammadia/freetier/config"
	"github.com/gammadia/freetier/namegen"
	"github.com/gammadia/freetier/provisioner/oci"
	"github.com/gammadia/freetier/provisioner/openstack"
	"github.com/gammadia/freetier/provisioner/simulated"
	"github.com/gammadia/freetier/runner/flags"
	"github.com/gammadia/freetier/sshkey"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// loadConfig builds the configuration from flags, environment and env file.
func loadConfig() (config.Config, error) {
	waitInterval, err := flags.Duration(flags.WaitInterval)
	if err != nil {
		return config.Config{}, err
	}
	maxRuntime, err := flags.Duration(flags.MaxRuntime)
	if err != nil {
		return config.Config{}, err
	}

	return config.Config{
		Provider:        viper.GetString(flags.Provider),
		Shape:           viper.GetString(flags.Shape),
		DisplayName:     lo.CoalesceOrEmpty(viper.GetString(flags.DisplayName), namegen.Prefixed("freetier").String()),
		Scope:           viper.GetString(flags.Scope),
		Locations:       flags.List(flags.Locations),
		SubnetID:        viper.GetString(flags.SubnetID),
		ImageID:         viper.GetString(flags.ImageID),
		OperatingSystem: viper.GetString(flags.OperatingSystem),
		OSVersion:       viper.GetString(flags.OSVersion),
		BootVolumeGB:    viper.GetInt64(flags.BootVolumeGB),
		AssignPublicIP:  viper.GetBool(flags.AssignPublicIP),
		SecondInstance:  viper.GetBool(flags.SecondInstance),
		SSHKeyFile:      viper.GetString(flags.SSHKeyFile),

		WaitInterval: waitInterval,
		MaxRuntime:   maxRuntime,
		ConfirmTries: viper.GetInt(flags.ConfirmTries),

		OCI: config.OCI{
			ConfigFile: viper.GetString(flags.OCIConfigFile),
			Profile:    viper.GetString(flags.OCIProfile),
		},
		OpenStack: config.OpenStack{
			Flavors:        flags.List(flags.OpenstackFlavors),
			Networks:       flags.List(flags.OpenstackNetworks),
			SecurityGroups: flags.List(flags.OpenstackSecurityGroups),
			KeyPair:        viper.GetString(flags.OpenstackKeyPair),
			BuildTimeout:   viper.GetDuration(flags.OpenstackBuildTimeout),
		},
		Notify: config.Notify{
			Email:           viper.GetBool(flags.NotifyEmail),
			EmailAddress:    viper.GetString(flags.NotifyEmailAddress),
			EmailPassword:   viper.GetString(flags.NotifyEmailPassword),
			SMTPServer:      viper.GetString(flags.NotifySMTPServer),
			EmailTemplate:   viper.GetString(flags.NotifyEmailTemplate),
			DiscordWebhook:  viper.GetString(flags.NotifyDiscordWebhook),
			CI:              viper.GetBool(flags.NotifyCI),
			CINotifications: viper.GetBool(flags.NotifyCINotifications),
		},
	}, nil
}

// createProvider builds the provider selected by the configuration, along
// with the policy its requests must comply with.
func createProvider(cfg config.Config, logger *slog.Logger) (acquirer.Provider, config.Policy, error) {
	switch cfg.Provider {
	case config.ProviderOCI:
		provider, err := oci.NewProvider(oci.Config{
			ConfigFile: cfg.OCI.ConfigFile,
			Profile:    cfg.OCI.Profile,
		}, logger.With("component", "oci"))
		return provider, config.AlwaysFree, err

	case config.ProviderOpenStack:
		provider, err := openstack.NewProvider(openstack.Config{
			Networks:       openstack.Networks(cfg.OpenStack.Networks),
			SecurityGroups: cfg.OpenStack.SecurityGroups,
			KeyPair:        cfg.OpenStack.KeyPair,
			BuildTimeout:   cfg.OpenStack.BuildTimeout,
		}, logger.With("component", "openstack"))
		flavors := lo.Ternary(len(cfg.OpenStack.Flavors) > 0, cfg.OpenStack.Flavors, []string{cfg.Shape})
		return provider, config.Operator(flavors), err

	case config.ProviderSimulated:
		provider, err := simulated.NewProvider(simulated.Config{
			Logger:           logger,
			CapacityFailures: viper.GetInt(flags.SimulatedCapacityFailures),
			AcceptIn:         viper.GetString(flags.SimulatedAcceptIn),
		})
		return provider, config.AlwaysFree, err

	default:
		return nil, config.Policy{}, fmt.Errorf("unknown provider '%s'", cfg.Provider)
	}
}

func region(provider acquirer.Provider) string {
	if resolver, ok := provider.(acquirer.Resolver); ok {
		return resolver.Region()
	}
	return ""
}

func readKey(cfg config.Config) (sshkey.Key, error) {
	return sshkey.ReadOrGenerate(cfg.SSHKeyFile, filepath.Dir(cfg.SSHKeyFile), sshkey.Algorithm(viper.GetString(flags.SSHKeyType)))
}

// resolve discovers the subnet and image left empty in the configuration.
// The image listing is dumped whenever it was fetched.
func resolve(ctx context.Context, provider acquirer.Provider, cfg config.Config, writer *artifacts.Writer, logger *slog.Logger) (config.Resolved, error) {
	resolved := config.Resolved{}

	resolver, ok := provider.(acquirer.Resolver)
	if !ok {
		return resolved, nil
	}

	if cfg.SubnetID == "" {
		subnet, err := resolver.ResolveSubnet(ctx, cfg.Scope)
		if err != nil {
			return resolved, fmt.Errorf("failed to resolve subnet: %w", err)
		}
		logger.Info("Using discovered subnet", "subnet", subnet)
		resolved.SubnetID = subnet
	}

	if cfg.ImageID == "" {
		image, images, err := acquirer.ResolveImage(ctx, resolver, cfg.Scope, cfg.Shape, cfg.OperatingSystem, cfg.OSVersion)
		if len(images) > 0 {
			if _, dumpErr := writer.Images(images); dumpErr != nil {
				logger.Warn("Failed to write image listing", "error", dumpErr)
			}
		}
		if err != nil {
			return resolved, err
		}
		logger.Info("Using discovered image", "image", image.ID, "name", image.DisplayName)
		resolved.ImageID = image.ID
	}

	return resolved, nil
}
