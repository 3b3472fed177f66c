package flags

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "freetier"

const (
	LogFormat = "log-format"
	LogLevel  = "log-level"
	LogSource = "log-source"
	LogFile   = "log-file"
	Quiet     = "quiet"
	EnvFile   = "env-file"

	Provider        = "provider"
	Shape           = "shape"
	DisplayName     = "display-name"
	Scope           = "scope"
	Locations       = "locations"
	SubnetID        = "subnet-id"
	ImageID         = "image-id"
	OperatingSystem = "operating-system"
	OSVersion       = "os-version"
	BootVolumeGB    = "boot-volume-gb"
	AssignPublicIP  = "assign-public-ip"
	SecondInstance  = "second-instance"
	SSHKeyFile      = "ssh-key-file"
	SSHKeyType      = "ssh-key-type"

	WaitInterval   = "wait-interval"
	MaxRuntime     = "max-runtime"
	ConfirmTries   = "confirm-tries"
	InventoryDelay = "inventory-delay"

	ArtifactsDir = "artifacts-dir"
	MetricsFile  = "metrics-file"

	OCIConfigFile = "oci-config-file"
	OCIProfile    = "oci-profile"

	OpenstackFlavors        = "openstack-flavors"
	OpenstackNetworks       = "openstack-networks"
	OpenstackSecurityGroups = "openstack-security-groups"
	OpenstackKeyPair        = "openstack-key-pair"
	OpenstackBuildTimeout   = "openstack-build-timeout"

	SimulatedCapacityFailures = "simulated-capacity-failures"
	SimulatedAcceptIn         = "simulated-accept-in"

	NotifyEmail           = "notify-email"
	NotifyEmailAddress    = "notify-email-address"
	NotifyEmailPassword   = "notify-email-password"
	NotifySMTPServer      = "notify-smtp-server"
	NotifyEmailTemplate   = "notify-email-template"
	NotifyDiscordWebhook  = "notify-discord-webhook"
	NotifyCI              = "notify-ci"
	NotifyCINotifications = "notify-ci-notifications"
)

// Legacy environment variable names, still honoured after the prefixed ones.
var Legacy = map[string][]string{
	OCIConfigFile:        {"OCI_CONFIG"},
	Locations:            {"OCT_FREE_AD"},
	DisplayName:          {"DISPLAY_NAME"},
	WaitInterval:         {"REQUEST_WAIT_TIME_SECS"},
	MaxRuntime:           {"MAX_RUNTIME_SECS"},
	SSHKeyFile:           {"SSH_AUTHORIZED_KEYS_FILE"},
	ImageID:              {"OCI_IMAGE_ID"},
	Shape:                {"OCI_COMPUTE_SHAPE"},
	SecondInstance:       {"SECOND_MICRO_INSTANCE"},
	SubnetID:             {"OCI_SUBNET_ID"},
	OperatingSystem:      {"OPERATING_SYSTEM"},
	OSVersion:            {"OS_VERSION"},
	AssignPublicIP:       {"ASSIGN_PUBLIC_IP"},
	BootVolumeGB:         {"BOOT_VOLUME_SIZE"},
	NotifyEmail:          {"NOTIFY_EMAIL"},
	NotifyEmailAddress:   {"EMAIL"},
	NotifyEmailPassword:  {"EMAIL_PASSWORD"},
	NotifyDiscordWebhook: {"DISCORD_WEBHOOK"},
	NotifyCI:             {"CI", "GITHUB_ACTIONS"},
}

// Register declares every flag on the given set.
func Register(flags *flag.FlagSet) {
	// Freetier
	flags.String(LogFormat, "text", "log format (json, text)")
	flags.String(LogLevel, "INFO", "minimum log level")
	flags.Bool(LogSource, false, "add source code location to logs")
	flags.String(LogFile, "", "also write logs to this file")
	flags.BoolP(Quiet, "q", false, "show progress instead of logs on the terminal, logs still go to the log file")
	flags.String(EnvFile, "oci.env", "dotenv file merged below flags and environment, ignored when missing")

	// Request
	flags.String(Provider, "oci", "compute provider to use (oci, openstack, simulated)")
	flags.String(Shape, "VM.Standard.A1.Flex", "shape (or flavor) of the instance")
	flags.String(DisplayName, "", "display name of the instance, generated when empty")
	flags.String(Scope, "", "compartment or project, defaults to the root of the credentials")
	flags.StringSlice(Locations, nil, "availability domain suffixes to try, in order (e.g. AD-1,AD-3), empty means all")
	flags.String(SubnetID, "", "subnet to attach the instance to, discovered when empty")
	flags.String(ImageID, "", "image to boot, discovered from operating system and version when empty")
	flags.String(OperatingSystem, "Canonical Ubuntu", "operating system used to discover the image")
	flags.String(OSVersion, "22.04", "operating system version used to discover the image")
	flags.Int64(BootVolumeGB, 50, "boot volume size in GB")
	flags.Bool(AssignPublicIP, false, "assign a public IP to the instance")
	flags.Bool(SecondInstance, false, "acquire the second micro instance")
	flags.String(SSHKeyFile, "id_rsa.pub", "public key authorized on the instance, generated when missing")
	flags.String(SSHKeyType, "rsa", "type of generated SSH keys (rsa, ed25519)")

	// Pacing
	flags.String(WaitInterval, "60s", "pause between attempts (duration or seconds)")
	flags.String(MaxRuntime, "0", "give up after this long, 0 means never (duration or seconds)")
	flags.Int(ConfirmTries, 3, "inventory listings used to confirm a creation")
	flags.Duration(InventoryDelay, 60*time.Second, "pause between inventory listings")

	// Outputs
	flags.String(ArtifactsDir, ".", "directory receiving marker files")
	flags.String(MetricsFile, "", "write Prometheus metrics to this textfile when set")

	// OCI
	flags.String(OCIConfigFile, "", "OCI SDK configuration file (default ~/.oci/config)")
	flags.String(OCIProfile, "DEFAULT", "profile of the OCI configuration file")

	// Openstack
	flags.StringSlice(OpenstackFlavors, nil, "flavors allowed by the policy, empty allows the configured shape only")
	flags.StringSlice(OpenstackNetworks, nil, "networks attached to the instance")
	flags.StringSlice(OpenstackSecurityGroups, nil, "security groups defined for the instance")
	flags.String(OpenstackKeyPair, "", "key pair holding the public key, created when missing")
	flags.Duration(OpenstackBuildTimeout, 2*time.Minute, "how long to wait for a server to leave BUILD")

	// Simulated
	flags.Int(SimulatedCapacityFailures, 3, "capacity failures before a simulated creation succeeds, -1 means never")
	flags.String(SimulatedAcceptIn, "", "location suffix where simulated creations eventually succeed")

	// Notifications
	flags.Bool(NotifyEmail, false, "send emails on creation and failure")
	flags.String(NotifyEmailAddress, "", "email sender and recipient")
	flags.String(NotifyEmailPassword, "", "SMTP password (prefer the environment)")
	flags.String(NotifySMTPServer, "smtp.gmail.com:587", "SMTP server with STARTTLS")
	flags.String(NotifyEmailTemplate, "", "HTML template for creation emails")
	flags.String(NotifyDiscordWebhook, "", "Discord webhook receiving every notification")
	flags.Bool(NotifyCI, false, "running under CI, detected from CI and GITHUB_ACTIONS")
	flags.Bool(NotifyCINotifications, false, "send notifications even under CI")
}

// Bind binds the flags to viper, along with the prefixed and legacy
// environment variables.
func Bind(flags *flag.FlagSet) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	lo.Must0(viper.BindPFlags(flags))

	for key, names := range Legacy {
		lo.Must0(viper.BindEnv(append([]string{key, envName(key)}, names...)...))
	}
}

// LoadEnvFile merges a dotenv file below flags and environment. Keys may use
// either the prefixed or the legacy names. A missing file is not an error.
func LoadEnvFile(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("env")
	if err := file.ReadInConfig(); err != nil {
		return false, fmt.Errorf("failed to read env file '%s': %w", path, err)
	}

	values := map[string]any{}
	for _, name := range file.AllKeys() {
		if key, ok := keyOf(name); ok {
			values[key] = file.Get(name)
		}
	}

	if err := viper.MergeConfigMap(values); err != nil {
		return false, fmt.Errorf("failed to merge env file '%s': %w", path, err)
	}
	return true, nil
}

// keyOf maps an environment variable name, as lowercased by viper, to a
// flag name.
func keyOf(name string) (string, bool) {
	name = strings.ToUpper(name)

	if prefix := strings.ToUpper(EnvPrefix) + "_"; strings.HasPrefix(name, prefix) {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, prefix)), "_", "-"), true
	}

	for key, names := range Legacy {
		if lo.Contains(names, name) {
			return key, true
		}
	}
	return "", false
}

func envName(key string) string {
	return strings.ToUpper(EnvPrefix + "_" + strings.ReplaceAll(key, "-", "_"))
}

// Duration reads a duration given either with a unit or as a number of
// seconds, the format of the legacy variables.
func Duration(key string) (time.Duration, error) {
	raw := strings.TrimSpace(viper.GetString(key))
	if raw == "" {
		return 0, nil
	}

	var seconds int64
	if _, err := fmt.Sscanf(raw, "%d", &seconds); err == nil && fmt.Sprint(seconds) == raw {
		return time.Duration(seconds) * time.Second, nil
	}

	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for '%s': %w", key, err)
	}
	return duration, nil
}

// List reads a list, also splitting elements on commas.
func List(key string) []string {
	return lo.Compact(lo.FlatMap(viper.GetStringSlice(key), func(item string, _ int) []string {
		return lo.Map(strings.Split(item, ","), func(part string, _ int) string {
			return strings.TrimSpace(part)
		})
	}))
}
