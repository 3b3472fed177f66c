package acquirer

import (
	"fmt"
	"log/slog"
	"time"
)

type Config struct {
	Logger   *slog.Logger `json:"-"`
	Notifier Notifier     `json:"-"`
	// Defaults to SystemClock
	Clock Clock `json:"-"`
	// Pause between inventory listings of the initial check and confirmations
	InventoryDelay time.Duration `json:"inventory-delay"`
	// Upper bound for a single notification delivery
	NotifyTimeout time.Duration `json:"notify-timeout"`
}

const (
	DefaultInventoryDelay = 60 * time.Second
	DefaultNotifyTimeout  = 30 * time.Second
)

func Validate(config Config) error {
	if config.InventoryDelay < 0 {
		return fmt.Errorf("inventory-delay must not be negative")
	}
	if config.NotifyTimeout < 0 {
		return fmt.Errorf("notify-timeout must not be negative")
	}
	return nil
}

func ValidatePolicy(policy RetryPolicy) error {
	if policy.WaitInterval < 0 {
		return fmt.Errorf("wait-interval must not be negative")
	}
	if policy.MaxRuntime < 0 {
		return fmt.Errorf("max-runtime must not be negative")
	}
	if policy.ConfirmTries < 0 {
		return fmt.Errorf("confirm-tries must not be negative")
	}
	return nil
}
