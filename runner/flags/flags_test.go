package flags

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, args ...string) *flag.FlagSet {
	viper.Reset()
	t.Cleanup(viper.Reset)

	flags := flag.NewFlagSet("freetier", flag.ContinueOnError)
	Register(flags)
	require.NoError(t, flags.Parse(args))
	Bind(flags)
	return flags
}

func TestDefaults(t *testing.T) {
	setup(t)

	assert.Equal(t, "oci", viper.GetString(Provider))
	assert.Equal(t, "VM.Standard.A1.Flex", viper.GetString(Shape))
	assert.Equal(t, int64(50), viper.GetInt64(BootVolumeGB))
	assert.Equal(t, 60*time.Second, viper.GetDuration(InventoryDelay))
}

func TestPrecedence(t *testing.T) {
	t.Setenv("FREETIER_SHAPE", "VM.Standard.E2.1.Micro")
	t.Setenv("OCI_COMPUTE_SHAPE", "VM.Standard.E4.Flex")
	t.Setenv("DISPLAY_NAME", "legacy-name")
	setup(t, "--boot-volume-gb", "80")

	assert.Equal(t, "VM.Standard.E2.1.Micro", viper.GetString(Shape))
	assert.Equal(t, "legacy-name", viper.GetString(DisplayName))
	assert.Equal(t, int64(80), viper.GetInt64(BootVolumeGB))
}

func TestCIDetection(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")
	setup(t)

	assert.True(t, viper.GetBool(NotifyCI))
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("OCI_IMAGE_ID", "ocid1.image.from-env")
	setup(t, "--display-name", "from-flag")

	path := filepath.Join(t.TempDir(), "oci.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"OCT_FREE_AD=AD-1,AD-3\n"+
			"DISPLAY_NAME=from-file\n"+
			"OCI_IMAGE_ID=ocid1.image.from-file\n"+
			"FREETIER_MAX_RUNTIME=3600\n"+
			"UNRELATED=value\n",
	), 0644))

	loaded, err := LoadEnvFile(path)
	require.NoError(t, err)
	assert.True(t, loaded)

	assert.Equal(t, []string{"AD-1", "AD-3"}, List(Locations))
	assert.Equal(t, "from-flag", viper.GetString(DisplayName))
	assert.Equal(t, "ocid1.image.from-env", viper.GetString(ImageID))

	maxRuntime, err := Duration(MaxRuntime)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, maxRuntime)
}

func TestLoadEnvFile_Missing(t *testing.T) {
	setup(t)

	loaded, err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.False(t, loaded)

	loaded, err = LoadEnvFile("")
	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestDuration(t *testing.T) {
	setup(t)

	tests := []struct {
		raw      string
		expected time.Duration
		fails    bool
	}{
		{"60", time.Minute, false},
		{"90s", 90 * time.Second, false},
		{"1h30m", 90 * time.Minute, false},
		{"0", 0, false},
		{"", 0, false},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			viper.Set(WaitInterval, tt.raw)
			duration, err := Duration(WaitInterval)
			if tt.fails {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, duration)
		})
	}
}

func TestList(t *testing.T) {
	setup(t, "--locations", "AD-1, AD-2", "--locations", "AD-3")
	assert.Equal(t, []string{"AD-1", "AD-2", "AD-3"}, List(Locations))

	viper.Set(Locations, "AD-2,,AD-1")
	assert.Equal(t, []string{"AD-2", "AD-1"}, List(Locations))
}

func TestKeyOf(t *testing.T) {
	key, ok := keyOf("freetier_notify_discord_webhook")
	assert.True(t, ok)
	assert.Equal(t, NotifyDiscordWebhook, key)

	key, ok = keyOf("ssh_authorized_keys_file")
	assert.True(t, ok)
	assert.Equal(t, SSHKeyFile, key)

	_, ok = keyOf("path")
	assert.False(t, ok)

	assert.Equal(t, "FREETIER_OCI_CONFIG_FILE", envName(OCIConfigFile))
}
