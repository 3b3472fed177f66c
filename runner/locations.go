package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/gammadia/freetier/acquirer"
	"github.com/gammadia/freetier/runner/log"
	"github.com/gammadia/freetier/runner/ui"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "List the locations of the provider and the order they will be tried in",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		provider, _, err := createProvider(cfg, log.Base)
		if err != nil {
			return err
		}

		spinner := ui.NewSpinner("Listing locations")
		available, err := provider.ListLocations(cmd.Context(), cfg.Scope)
		if err != nil {
			spinner.Fail()
			return fmt.Errorf("failed to list locations: %w", err)
		}
		spinner.Success()

		candidates := acquirer.FilterLocations(available, cfg.Locations)
		for _, location := range available {
			if index := lo.IndexOf(candidates, location); index >= 0 {
				cmd.Printf("%s %s\n", color.HiGreenString("%d.", index+1), location)
			} else {
				cmd.Printf("%s %s\n", color.HiBlackString("-"), color.HiBlackString(location))
			}
		}

		if len(candidates) == 0 {
			return fmt.Errorf("no location matches %v", cfg.Locations)
		}
		return nil
	},
}
