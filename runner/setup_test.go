package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gammadia/freetier/acquirer"
	"github.com/gammadia/freetier/artifacts"
	"github.com/gammadia/freetier/config"
	"github.com/gammadia/freetier/runner/flags"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFlags(t *testing.T, args ...string) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	set := flag.NewFlagSet("freetier", flag.ContinueOnError)
	flags.Register(set)
	require.NoError(t, set.Parse(args))
	flags.Bind(set)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("REQUEST_WAIT_TIME_SECS", "30")
	t.Setenv("OCT_FREE_AD", "AD-1,AD-2")
	setupFlags(t, "--provider", "simulated", "--max-runtime", "2h", "--display-name", "free-arm")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, config.ProviderSimulated, cfg.Provider)
	assert.Equal(t, "free-arm", cfg.DisplayName)
	assert.Equal(t, []string{"AD-1", "AD-2"}, cfg.Locations)
	assert.Equal(t, 30*time.Second, cfg.WaitInterval)
	assert.Equal(t, 2*time.Hour, cfg.MaxRuntime)
	assert.Equal(t, int64(50), cfg.BootVolumeGB)
	assert.Equal(t, "Canonical Ubuntu", cfg.OperatingSystem)
}

func TestLoadConfig_GeneratesDisplayName(t *testing.T) {
	setupFlags(t)

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Regexp(t, `^freetier-\S+$`, cfg.DisplayName)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	setupFlags(t, "--wait-interval", "often")

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestCreateProvider(t *testing.T) {
	cfg := config.Config{Provider: config.ProviderSimulated}
	provider, policy, err := createProvider(cfg, discard())
	require.NoError(t, err)
	assert.Equal(t, config.AlwaysFree.Name, policy.Name)
	assert.Equal(t, "us-phoenix-1", region(provider))

	_, _, err = createProvider(config.Config{Provider: "aws"}, discard())
	assert.ErrorContains(t, err, "unknown provider 'aws'")
}

func TestResolve(t *testing.T) {
	setupFlags(t)
	dir := t.TempDir()
	writer := artifacts.New(dir, discard())

	provider, _, err := createProvider(config.Config{Provider: config.ProviderSimulated}, discard())
	require.NoError(t, err)

	cfg := config.Config{Shape: config.ArmShape, OperatingSystem: "Canonical Ubuntu", OSVersion: "24.04"}
	resolved, err := resolve(context.Background(), provider, cfg, writer, discard())
	require.NoError(t, err)
	assert.Equal(t, "ocid1.subnet.sim", resolved.SubnetID)
	assert.Equal(t, "ocid1.image.sim.ubuntu-24.04", resolved.ImageID)
	assert.FileExists(t, filepath.Join(dir, artifacts.ImagesFile))

	cfg = config.Config{Shape: config.ArmShape, SubnetID: "ocid1.subnet.mine", ImageID: "ocid1.image.mine"}
	resolved, err = resolve(context.Background(), provider, cfg, writer, discard())
	require.NoError(t, err)
	assert.Equal(t, config.Resolved{}, resolved)

	cfg = config.Config{Shape: config.ArmShape, OperatingSystem: "Windows", OSVersion: "2022"}
	_, err = resolve(context.Background(), provider, cfg, writer, discard())
	var configErr *acquirer.ConfigurationError
	assert.ErrorAs(t, err, &configErr)
}

func TestRunCommand_Simulated(t *testing.T) {
	dir := t.TempDir()
	setupFlags(t,
		"--provider", "simulated",
		"--simulated-capacity-failures", "2",
		"--wait-interval", "0",
		"--inventory-delay", "0",
		"--ssh-key-file", filepath.Join(dir, "id.pub"),
		"--ssh-key-type", "ed25519",
		"--artifacts-dir", dir,
		"--metrics-file", filepath.Join(dir, "freetier.prom"),
		"--env-file", "",
		"--notify-ci",
	)

	runCmd.SetContext(context.Background())
	require.NoError(t, runCmd.RunE(runCmd, nil))

	content, err := os.ReadFile(filepath.Join(dir, artifacts.CreatedFile))
	require.NoError(t, err)
	assert.Contains(t, string(content), "Shape: VM.Standard.A1.Flex")
	assert.Contains(t, string(content), "SIM:PHX-AD-3")
	assert.FileExists(t, filepath.Join(dir, "id_private"))
	assert.FileExists(t, filepath.Join(dir, "freetier.prom"))
}

func TestRunCommand_ConfigError(t *testing.T) {
	dir := t.TempDir()
	setupFlags(t,
		"--provider", "simulated",
		"--shape", "VM.Standard.E4.Flex",
		"--ssh-key-file", filepath.Join(dir, "id.pub"),
		"--artifacts-dir", dir,
	)

	runCmd.SetContext(context.Background())
	err := runCmd.RunE(runCmd, nil)
	assert.ErrorContains(t, err, "invalid configuration")
	assert.FileExists(t, filepath.Join(dir, artifacts.ConfigErrorFile))
}

func TestRunCommand_ConfigErrorNotifies(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")

	messages := make(chan string, 4)
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		messages <- payload["content"]
		w.WriteHeader(http.StatusNoContent)
	}))
	defer webhook.Close()

	dir := t.TempDir()
	setupFlags(t,
		"--provider", "simulated",
		"--shape", "VM.Standard.E4.Flex",
		"--ssh-key-file", filepath.Join(dir, "id.pub"),
		"--artifacts-dir", dir,
		"--env-file", "",
		"--notify-discord-webhook", webhook.URL,
	)

	runCmd.SetContext(context.Background())
	err := runCmd.RunE(runCmd, nil)
	assert.ErrorContains(t, err, "invalid configuration")
	require.Len(t, messages, 1)
	assert.Contains(t, <-messages, "Invalid configuration")
}

func TestFailures(t *testing.T) {
	dir := t.TempDir()
	var notifications []acquirer.Notification
	report := &failures{
		writer: artifacts.New(dir, discard()),
		log:    discard(),
		notifier: acquirer.NotifierFunc(func(_ context.Context, notification acquirer.Notification) error {
			notifications = append(notifications, notification)
			return errors.New("webhook unreachable")
		}),
	}

	cause := &acquirer.ProviderError{Status: 401, Code: "NotAuthenticated"}
	err := report.unhandled(context.Background(), fmt.Errorf("failed to resolve subnet: %w", cause), config.Config{})
	assert.ErrorIs(t, err, cause)
	assert.FileExists(t, filepath.Join(dir, artifacts.UnhandledErrorFile))

	err = report.configuration(context.Background(), errors.New("shape is required"))
	assert.ErrorContains(t, err, "invalid configuration")
	assert.FileExists(t, filepath.Join(dir, artifacts.ConfigErrorFile))

	require.Len(t, notifications, 2)
	for _, notification := range notifications {
		assert.Equal(t, acquirer.NotificationFailed, notification.Kind)
	}
	assert.Contains(t, notifications[0].Text, "failed to resolve subnet")
	assert.Contains(t, notifications[1].Text, "shape is required")
}

func TestFailures_WithoutNotifier(t *testing.T) {
	dir := t.TempDir()
	report := &failures{writer: artifacts.New(dir, discard()), log: discard()}

	err := report.configuration(context.Background(), errors.New("shape is required"))
	assert.ErrorContains(t, err, "invalid configuration")
	assert.FileExists(t, filepath.Join(dir, artifacts.ConfigErrorFile))
}

func TestRecordOutcome(t *testing.T) {
	dir := t.TempDir()
	writer := artifacts.New(dir, discard())
	cfg := config.Config{MaxRuntime: time.Hour}

	assert.NoError(t, recordOutcome(writer, acquirer.Outcome{Kind: acquirer.OutcomeTimedOut}, cfg))
	assert.FileExists(t, filepath.Join(dir, artifacts.TimedOutFile))

	cause := &acquirer.ProviderError{Status: 401, Code: "NotAuthenticated"}
	err := recordOutcome(writer, acquirer.Outcome{Kind: acquirer.OutcomeFailed, Err: cause}, cfg)
	assert.ErrorIs(t, err, cause)
	assert.FileExists(t, filepath.Join(dir, artifacts.UnhandledErrorFile))
}

func TestProgress_WithoutTerminal(t *testing.T) {
	p := &progress{}
	p.Observe(acquirer.EventAttempt{Location: "AD-1", Attempt: 1, Total: 1})
	p.Observe(acquirer.EventOutcome{Outcome: acquirer.Outcome{Kind: acquirer.OutcomeTimedOut}})
}
