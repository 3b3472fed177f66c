// Package artifacts writes the marker files other tools watch to learn how a
// run ended.
package artifacts

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gammadia/freetier/acquirer"
	"github.com/gammadia/freetier/notifier"
	"gopkg.in/yaml.v3"
)

const (
	CreatedFile        = "INSTANCE_CREATED"
	TimedOutFile       = "MAX_RUNTIME_REACHED"
	UnhandledErrorFile = "UNHANDLED_ERROR.log"
	ConfigErrorFile    = "ERROR_IN_CONFIG.log"
	ImagesFile         = "images_list.yaml"
)

type Writer struct {
	dir string
	log *slog.Logger
}

func New(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, log: logger}
}

func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Outcome writes the marker matching the outcome of a run and returns its
// path.
func (w *Writer) Outcome(outcome acquirer.Outcome, maxRuntime time.Duration) (string, error) {
	switch outcome.Kind {
	case acquirer.OutcomeCreated, acquirer.OutcomeAlreadySatisfied:
		if outcome.Record == nil {
			return "", fmt.Errorf("%s outcome without instance", outcome.Kind)
		}
		content, err := yaml.Marshal(outcome.Record)
		if err != nil {
			return "", fmt.Errorf("failed to encode instance details: %w", err)
		}
		return w.write(CreatedFile, content)

	case acquirer.OutcomeTimedOut:
		return w.write(TimedOutFile, []byte(fmt.Sprintf(
			"Max runtime (%s) reached without %s. Exiting gracefully so the scheduler can try again later.\n",
			maxRuntime, CreatedFile,
		)))

	case acquirer.OutcomeFailed:
		var configErr *acquirer.ConfigurationError
		if errors.As(outcome.Err, &configErr) {
			return w.ConfigError(outcome.Err)
		}
		return w.write(UnhandledErrorFile, []byte(notifier.FailureReport(errorText(outcome.Err))+"\n"))

	default:
		return "", fmt.Errorf("no artifact for outcome '%s'", outcome.Kind)
	}
}

// ConfigError records a configuration problem found before or during a run.
func (w *Writer) ConfigError(err error) (string, error) {
	return w.write(ConfigErrorFile, []byte(errorText(err)+"\n"))
}

// Images dumps an image listing so the operator can pick an image by hand.
func (w *Writer) Images(images []acquirer.Image) (string, error) {
	content, err := yaml.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("failed to encode image listing: %w", err)
	}
	return w.write(ImagesFile, content)
}

func (w *Writer) write(name string, content []byte) (string, error) {
	path := w.Path(name)
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write '%s': %w", name, err)
	}
	w.log.Info("Wrote artifact", "path", path)
	return path, nil
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
