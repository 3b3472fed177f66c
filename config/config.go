// Package config holds the immutable run configuration and the rules that
// keep it within a free tier.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
)

const (
	ProviderOCI       = "oci"
	ProviderOpenStack = "openstack"
	ProviderSimulated = "simulated"
)

// Config is built once from flags, environment and env file, then never
// mutated.
type Config struct {
	Provider string `json:"provider" validate:"oneof=oci openstack simulated"`

	Shape       string `json:"shape" validate:"required,nospaces"`
	DisplayName string `json:"display-name" validate:"required"`
	// Compartment or project, defaults to the provider's root scope
	Scope     string   `json:"scope" validate:"omitempty,nospaces"`
	Locations []string `json:"locations" validate:"dive,nospaces"`
	SubnetID  string   `json:"subnet-id" validate:"omitempty,nospaces"`
	ImageID   string   `json:"image-id" validate:"omitempty,nospaces"`
	// Used to discover the image when ImageID is empty
	OperatingSystem string `json:"operating-system" validate:"required_without=ImageID"`
	OSVersion       string `json:"os-version" validate:"required_without=ImageID,omitempty,nospaces"`
	BootVolumeGB    int64  `json:"boot-volume-gb" validate:"gte=0"`
	AssignPublicIP  bool   `json:"assign-public-ip"`
	SecondInstance  bool   `json:"second-instance"`
	SSHKeyFile      string `json:"ssh-key-file" validate:"required,nospaces"`

	WaitInterval time.Duration `json:"wait-interval" validate:"gte=0"`
	MaxRuntime   time.Duration `json:"max-runtime" validate:"gte=0"`
	ConfirmTries int           `json:"confirm-tries" validate:"gte=0"`

	OCI       OCI       `json:"oci"`
	OpenStack OpenStack `json:"openstack"`
	Notify    Notify    `json:"notify"`
}

type OCI struct {
	ConfigFile string `json:"config-file" validate:"omitempty,nospaces"`
	Profile    string `json:"profile" validate:"omitempty,nospaces"`
}

type OpenStack struct {
	// Flavors the operator accepts, empty means any
	Flavors        []string      `json:"flavors" validate:"dive,nospaces"`
	Networks       []string      `json:"networks" validate:"dive,nospaces"`
	SecurityGroups []string      `json:"security-groups" validate:"dive,nospaces"`
	KeyPair        string        `json:"key-pair" validate:"omitempty,nospaces"`
	BuildTimeout   time.Duration `json:"build-timeout" validate:"gte=0"`
}

type Notify struct {
	Email          bool   `json:"email"`
	EmailAddress   string `json:"email-address" validate:"required_if=Email true,omitempty,email"`
	EmailPassword  string `json:"-" validate:"required_if=Email true,omitempty,nospaces"`
	SMTPServer     string `json:"smtp-server" validate:"omitempty,hostname_port"`
	EmailTemplate  string `json:"email-template" validate:"omitempty,nospaces"`
	DiscordWebhook string `json:"discord-webhook" validate:"omitempty,url,nospaces"`
	// Running under CI, where notifications are opt-in
	CI              bool `json:"ci"`
	CINotifications bool `json:"ci-notifications"`
}

// Enabled reports whether notification transports should be set up at all.
func (n Notify) Enabled() bool {
	return !n.CI || n.CINotifications
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("nospaces", func(fl validator.FieldLevel) bool {
		return !strings.ContainsRune(fl.Field().String(), ' ')
	})
	return v
}

// Validate checks every field and reports all problems at once.
func Validate(config Config) error {
	err := validate.Struct(config)
	if err == nil {
		return nil
	}

	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("failed to validate configuration: %w", err)
	}

	var errs error
	for _, fieldError := range fieldErrors {
		errs = multierr.Append(errs, describe(fieldError))
	}
	return errs
}

func describe(fieldError validator.FieldError) error {
	field := strings.TrimPrefix(fieldError.Namespace(), "Config.")
	switch fieldError.Tag() {
	case "required", "required_if", "required_without":
		return fmt.Errorf("%s is required", field)
	case "nospaces":
		return fmt.Errorf("%s must not contain spaces", field)
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got '%v'", field, fieldError.Param(), fieldError.Value())
	case "gte":
		return fmt.Errorf("%s must not be negative", field)
	default:
		return fmt.Errorf("%s is not a valid %s", field, fieldError.Tag())
	}
}
