package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gammadia/freetier/acquirer"
	"github.com/gammadia/freetier/artifacts"
	"github.com/gammadia/freetier/config"
	"github.com/gammadia/freetier/metrics"
	"github.com/gammadia/freetier/namegen"
	"github.com/gammadia/freetier/notifier"
	"github.com/gammadia/freetier/runner/flags"
	"github.com/gammadia/freetier/runner/log"
	"github.com/gammadia/freetier/runner/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Acquire the configured instance, retrying until capacity is available",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.With("run", namegen.Get())
		report := &failures{
			writer: artifacts.New(viper.GetString(flags.ArtifactsDir), log.Base.With("component", "artifacts")),
			log:    logger,
		}
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return report.configuration(ctx, err)
		}

		// Transports come first so an invalid configuration is reported too
		notifiers, err := notifier.New(cfg.Notify, log.Base.With("component", "notifier"))
		if err == nil {
			report.notifier = notifier.Logging(notifiers, logger)
		}
		if validateErr := config.Validate(cfg); validateErr != nil {
			return report.configuration(ctx, validateErr)
		}
		if err != nil {
			return report.configuration(ctx, err)
		}

		key, err := readKey(cfg)
		if err != nil {
			return report.configuration(ctx, err)
		}
		if key.Generated {
			logger.Info("Generated a new SSH key pair", "public-key", key.PublicKeyFile, "private-key", key.PrivateKeyFile)
		}

		provider, policy, err := createProvider(cfg, log.Base)
		if err != nil {
			return report.configuration(ctx, err)
		}

		compliance, err := policy.Check(cfg, region(provider))
		if err != nil {
			return report.configuration(ctx, err)
		}
		for _, warning := range compliance.Warnings {
			logger.Warn(warning, "policy", policy.Name)
		}

		resolved, err := resolve(ctx, provider, cfg, report.writer, logger)
		if err != nil {
			var configErr *acquirer.ConfigurationError
			if errors.As(err, &configErr) {
				return report.configuration(ctx, err)
			}
			return report.unhandled(ctx, err, cfg)
		}

		engine := acquirer.New(provider, acquirer.Config{
			Logger:         logger.With("component", "engine"),
			Notifier:       report.notifier,
			InventoryDelay: viper.GetDuration(flags.InventoryDelay),
			NotifyTimeout:  acquirer.DefaultNotifyTimeout,
		})

		m := metrics.New()
		engine.Subscribe(m.Observe)
		if viper.GetBool(flags.Quiet) {
			engine.Subscribe(newProgress().Observe)
		}

		outcome := engine.Run(ctx, cfg.Request(compliance, resolved, key.PublicKey), cfg.RetryPolicy())

		if path := viper.GetString(flags.MetricsFile); path != "" {
			if err := m.WriteTextfile(path); err != nil {
				logger.Warn("Failed to write metrics", "error", err)
			}
		}

		return recordOutcome(report.writer, outcome, cfg)
	},
}

// failures records and reports what goes wrong before the engine runs.
// Nothing is sent until the notification transports could be built.
type failures struct {
	writer   *artifacts.Writer
	notifier acquirer.Notifier
	log      *slog.Logger
}

func (f *failures) notify(ctx context.Context, text string) {
	if f.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), acquirer.DefaultNotifyTimeout)
	defer cancel()

	if err := f.notifier.Notify(ctx, acquirer.Notification{Kind: acquirer.NotificationFailed, Text: text}); err != nil {
		f.log.Warn("Failed to deliver notification", "kind", acquirer.NotificationFailed, "error", err)
	}
}

func (f *failures) configuration(ctx context.Context, err error) error {
	if _, writeErr := f.writer.ConfigError(err); writeErr != nil {
		f.log.Warn("Failed to record configuration error", "error", writeErr)
	}
	f.notify(ctx, fmt.Sprintf("Invalid configuration: %s", err))
	return fmt.Errorf("invalid configuration: %w", err)
}

func (f *failures) unhandled(ctx context.Context, err error, cfg config.Config) error {
	f.log.Error("Instance acquisition failed before starting", "error", err)
	f.notify(ctx, fmt.Sprintf("Instance acquisition failed: %s", err))
	return recordOutcome(f.writer, acquirer.Outcome{Kind: acquirer.OutcomeFailed, Err: err}, cfg)
}

// recordOutcome writes the outcome marker and turns the outcome into the
// command result.
func recordOutcome(writer *artifacts.Writer, outcome acquirer.Outcome, cfg config.Config) error {
	if _, err := writer.Outcome(outcome, cfg.MaxRuntime); err != nil {
		log.Warn("Failed to record outcome", "error", err)
	}

	if outcome.Success() {
		log.Info("Run finished", "outcome", outcome.String())
		return nil
	}
	return outcome.Err
}

// progress reports engine events on a terminal spinner.
type progress struct {
	spinner *ui.Spinner
}

func newProgress() *progress {
	return &progress{spinner: ui.NewSpinner("Discovering locations")}
}

func (p *progress) Observe(event acquirer.Event) {
	switch e := event.(type) {
	case acquirer.EventLocationsDiscovered:
		p.spinner.UpdateMessage(fmt.Sprintf("Checking existing instances (%d candidate locations)", len(e.Candidates)))
	case acquirer.EventAttempt:
		p.spinner.UpdateMessage(fmt.Sprintf("Attempt %d in %s", e.Total, e.Location))
	case acquirer.EventAttemptFailed:
		p.spinner.UpdateMessage(fmt.Sprintf("%s in %s", e.Classification, e.Location))
	case acquirer.EventBackoff:
		p.spinner.UpdateMessage(fmt.Sprintf("Waiting %s before the next attempt", e.Wait))
	case acquirer.EventCreateAccepted:
		p.spinner.UpdateMessage(fmt.Sprintf("Creation accepted in %s, confirming", e.Location))
	case acquirer.EventOutcome:
		switch {
		case e.Outcome.Acquired():
			p.spinner.Success(e.Outcome.String())
		case e.Outcome.Success():
			p.spinner.Warn(e.Outcome.String())
		default:
			p.spinner.Fail(e.Outcome.String())
		}
	}
}
