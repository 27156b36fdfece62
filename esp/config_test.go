package esp_test

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/openclock/espwifi/esp"
)

func TestConfig(t *testing.T) {
	t.Run("ErrNoDialer when no dialer provided", func(t *testing.T) {
		_, err := esp.NewConfigBuilder().Build()
		if !errors.Is(err, esp.ErrNoDialer) {
			t.Errorf("expected ErrNoDialer, got: %v", err)
		}
	})

	t.Run("Defaults are applied", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		config, err := esp.NewConfigBuilder().
			WithDialer(esp.NewMockDialer(ctrl)).
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}

		if config.CommandTimeout != 5*time.Second {
			t.Errorf("unexpected command timeout: %v", config.CommandTimeout)
		}
		if config.JoinTimeout != 15*time.Second {
			t.Errorf("unexpected join timeout: %v", config.JoinTimeout)
		}
		if config.MaxRetries != 3 {
			t.Errorf("unexpected retry count: %d", config.MaxRetries)
		}
		if config.RetryBackoff != time.Second {
			t.Errorf("unexpected backoff: %v", config.RetryBackoff)
		}
		if config.Logger == nil {
			t.Error("expected a default logger")
		}
	})

	t.Run("Explicit values are kept", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		config, err := esp.NewConfigBuilder().
			WithDialer(esp.NewMockDialer(ctrl)).
			WithCommandTimeout(time.Second).
			WithMaxRetries(7).
			WithSkipBLEDisable(true).
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}

		if config.CommandTimeout != time.Second {
			t.Errorf("unexpected command timeout: %v", config.CommandTimeout)
		}
		if config.MaxRetries != 7 {
			t.Errorf("unexpected retry count: %d", config.MaxRetries)
		}
		if !config.SkipBLEDisable {
			t.Error("expected SkipBLEDisable to be kept")
		}
	})
}
