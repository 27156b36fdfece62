package esp

import (
	"log/slog"
	"time"
)

// Config carries the settings a Device is constructed with.
type Config struct {
	// Dialer opens the transport to the co-processor. Required.
	Dialer Dialer
	// Logger receives driver diagnostics. Nil discards them.
	Logger *slog.Logger
	// CommandTimeout bounds one attempt of an ordinary command exchange.
	CommandTimeout time.Duration
	// JoinTimeout bounds one attempt of the slow AT+CWJAP exchange.
	JoinTimeout time.Duration
	// ScanTimeout bounds one attempt of the AT+CWLAP exchange.
	ScanTimeout time.Duration
	// MaxRetries is how many times an exchange is attempted before it
	// fails with ErrNoResponse.
	MaxRetries int
	// RetryBackoff is the pause between failed exchange attempts.
	RetryBackoff time.Duration
	// InitTimeout bounds the whole init sequence during New.
	InitTimeout time.Duration
	// SkipBLEDisable leaves BLE coexistence enabled during init. The zero
	// value disables BLE, which frees radio time for Wi-Fi.
	SkipBLEDisable bool
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 5 * time.Second
	}
	if c.JoinTimeout == 0 {
		c.JoinTimeout = 15 * time.Second
	}
	if c.ScanTimeout == 0 {
		c.ScanTimeout = 10 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.InitTimeout == 0 {
		c.InitTimeout = 10 * time.Second
	}
}

// ConfigBuilder assembles a Config fluently.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns a builder with zero values; Build fills in the
// defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

func (b *ConfigBuilder) WithCommandTimeout(d time.Duration) *ConfigBuilder {
	b.config.CommandTimeout = d
	return b
}

func (b *ConfigBuilder) WithJoinTimeout(d time.Duration) *ConfigBuilder {
	b.config.JoinTimeout = d
	return b
}

func (b *ConfigBuilder) WithScanTimeout(d time.Duration) *ConfigBuilder {
	b.config.ScanTimeout = d
	return b
}

func (b *ConfigBuilder) WithMaxRetries(n int) *ConfigBuilder {
	b.config.MaxRetries = n
	return b
}

func (b *ConfigBuilder) WithRetryBackoff(d time.Duration) *ConfigBuilder {
	b.config.RetryBackoff = d
	return b
}

func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.config.InitTimeout = d
	return b
}

func (b *ConfigBuilder) WithSkipBLEDisable(skip bool) *ConfigBuilder {
	b.config.SkipBLEDisable = skip
	return b
}

// Build validates the assembled Config and applies defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	if err := b.config.validate(); err != nil {
		return Config{}, err
	}
	config := b.config
	config.setDefaults()
	return config, nil
}
