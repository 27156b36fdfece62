package esp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openclock/espwifi/at"
)

// maxResponseSize bounds the per-attempt reply buffer. A peer that never
// sends a sentinel cannot grow memory past this.
const maxResponseSize = 4096

// errAttemptFailed marks a failed exchange attempt that is worth retrying:
// the device answered ERROR, the attempt timed out, or the reply overflowed
// the buffer. Transport and context failures are not retried.
var errAttemptFailed = errors.New("attempt failed")

// Device drives an ESP-AT Wi-Fi co-processor over a byte transport.
//
// All operations are synchronous: the caller's goroutine is blocked for the
// full duration of the command/response exchange, including retries and
// backoff. The Device holds no cache of radio state; every query re-issues
// the underlying command. At most one command may be in flight at a time;
// a Device shared between goroutines must be serialized externally.
type Device struct {
	// transport is the byte channel to the co-processor.
	transport Transport
	// config holds the driver settings.
	config Config
	// logger receives driver diagnostics.
	logger *slog.Logger
	// closed indicates the device has been shut down.
	closed bool
	// rx carries bytes from the reader goroutine to the exchange loop.
	rx chan byte
	// done is closed on Close so a reader blocked on a full rx can exit.
	done chan struct{}
}

// New establishes the transport via the configured Dialer, starts the
// transport reader and runs the init sequence (sanity probe, BLE
// coexistence off). Returns an error if the transport cannot be opened or
// the co-processor does not answer.
func New(ctx context.Context, config Config) (*Device, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial transport: %w", err)
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	d := &Device{
		transport: transport,
		config:    config,
		logger:    config.Logger,
		rx:        make(chan byte, maxResponseSize),
		done:      make(chan struct{}),
	}
	go d.readLoop()

	initCtx := ctx
	if config.InitTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, config.InitTimeout)
		defer cancel()
	}
	if err := d.init(initCtx); err != nil {
		d.Close()
		return nil, fmt.Errorf("initialize device: %w", err)
	}

	return d, nil
}

// Close shuts down the device and releases the transport. The reader
// goroutine exits once the transport read fails. After Close the device
// cannot be reused.
func (d *Device) Close() error {
	if d.closed {
		return ErrAlreadyClosed
	}
	d.closed = true
	close(d.done)

	if d.transport != nil {
		return d.transport.Close()
	}
	return nil
}

// init performs the power-on sequence: a sanity probe, then BLE
// coexistence off unless the config keeps it.
func (d *Device) init(ctx context.Context) error {
	if _, err := d.Execute(ctx, at.CmdProbe, d.config.CommandTimeout, d.config.MaxRetries); err != nil {
		return fmt.Errorf("device not responding: %w", err)
	}
	if !d.config.SkipBLEDisable {
		if err := d.DisableBLE(ctx); err != nil {
			return fmt.Errorf("disable BLE: %w", err)
		}
	}
	return nil
}

// readLoop is the only goroutine that reads the transport. It feeds bytes
// into d.rx until the transport reports an error or EOF, or Close signals
// shutdown while rx is full, then closes the channel so in-flight
// exchanges fail instead of hanging.
func (d *Device) readLoop() {
	defer close(d.rx)
	buf := make([]byte, 256)
	for {
		n, err := d.transport.Read(buf)
		for _, b := range buf[:n] {
			select {
			case d.rx <- b:
			case <-d.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// Execute sends one AT command and returns the reply payload with the
// trailing success sentinel stripped.
//
// Per attempt the command plus CRLF is written, then bytes are accumulated
// until the buffer ends in "OK\r\n" (success), ends in "ERROR\r\n"
// (failure) or the timeout elapses. Failed attempts discard the buffer,
// sleep the configured backoff and try again, up to retries times (at
// least once). When every attempt fails the call returns ErrNoResponse; no
// partial payload is ever returned.
func (d *Device) Execute(ctx context.Context, cmd string, timeout time.Duration, retries int) ([]byte, error) {
	if d.closed {
		return nil, ErrAlreadyClosed
	}
	if d.transport == nil {
		return nil, ErrNotInitialized
	}
	if timeout <= 0 {
		timeout = d.config.CommandTimeout
	}
	if retries < 1 {
		retries = 1
	}

	for attempt := 1; attempt <= retries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.config.RetryBackoff):
			}
		}

		payload, err := d.exchange(ctx, cmd, timeout)
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, errAttemptFailed) {
			return nil, err
		}
		d.logger.Debug("command attempt failed",
			"cmd", cmd, "attempt", attempt, "retries", retries, "error", err)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoResponse, cmd)
}

// exchange runs a single write/accumulate attempt.
func (d *Device) exchange(ctx context.Context, cmd string, timeout time.Duration) ([]byte, error) {
	d.drain()

	if _, err := d.transport.Write([]byte(cmd + at.CRLF)); err != nil {
		return nil, fmt.Errorf("write command %q: %w", cmd, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	buf := make([]byte, 0, 256)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("%w: no sentinel within %s", errAttemptFailed, timeout)
		case b, ok := <-d.rx:
			if !ok {
				return nil, fmt.Errorf("transport closed: %w", ErrNoResponse)
			}
			if len(buf) >= maxResponseSize {
				return nil, fmt.Errorf("%w: %s", errAttemptFailed, ErrResponseTooLarge)
			}
			buf = append(buf, b)
			if bytes.HasSuffix(buf, at.SuccessSentinel) {
				return buf[:len(buf)-len(at.SuccessSentinel)], nil
			}
			if bytes.HasSuffix(buf, at.FailureSentinel) {
				return nil, fmt.Errorf("%w: device reported %s", errAttemptFailed, at.ERROR)
			}
		}
	}
}

// drain discards bytes left over from a previous exchange so a stale
// sentinel cannot be matched against the next command's reply.
func (d *Device) drain() {
	for {
		select {
		case _, ok := <-d.rx:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
