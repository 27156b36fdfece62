package esp_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/openclock/espwifi/esp"
)

// testDialer hands out a pre-built transport.
type testDialer struct {
	transport esp.Transport
}

func (d testDialer) Dial(ctx context.Context) (esp.Transport, error) {
	return d.transport, nil
}

// newTestDevice builds a Device over a TestTransport with short timeouts.
// The init sequence (probe, BLE off) is answered automatically; respond
// handles everything else.
func newTestDevice(t *testing.T, respond func(cmd string) string) (*esp.Device, *esp.TestTransport) {
	t.Helper()

	transport := esp.NewTestTransport()
	transport.RespondWith(func(cmd string) string {
		switch cmd {
		case "AT", "AT+BLEINIT=0":
			return "\r\nOK\r\n"
		}
		if respond != nil {
			return respond(cmd)
		}
		return ""
	})

	config, err := esp.NewConfigBuilder().
		WithDialer(testDialer{transport: transport}).
		WithCommandTimeout(100 * time.Millisecond).
		WithJoinTimeout(100 * time.Millisecond).
		WithScanTimeout(50 * time.Millisecond).
		WithRetryBackoff(time.Millisecond).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	device, err := esp.New(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to create device: %v", err)
	}
	t.Cleanup(func() { device.Close() })
	return device, transport
}

// countWrites returns how many recorded writes satisfy the predicate.
func countWrites(writes []string, pred func(string) bool) int {
	n := 0
	for _, w := range writes {
		if pred(w) {
			n++
		}
	}
	return n
}

func TestExecute(t *testing.T) {
	t.Run("Strips exactly the trailing success sentinel", func(t *testing.T) {
		device, _ := newTestDevice(t, func(cmd string) string {
			if cmd == "AT+CIPSTATUS" {
				return "STATUS:2\r\n\r\nOK\r\n"
			}
			return ""
		})

		payload, err := device.Execute(context.Background(), "AT+CIPSTATUS", 0, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(payload, []byte("STATUS:2\r\n\r\n")) {
			t.Errorf("unexpected payload: %q", payload)
		}
		if bytes.HasSuffix(payload, []byte("OK\r\n")) {
			t.Error("payload still carries the success sentinel")
		}
	})

	t.Run("ErrNoResponse after ERROR on every attempt", func(t *testing.T) {
		device, transport := newTestDevice(t, func(cmd string) string {
			if cmd == "AT+CWQAP" {
				return "\r\nERROR\r\n"
			}
			return ""
		})

		_, err := device.Execute(context.Background(), "AT+CWQAP", 0, 3)
		if !errors.Is(err, esp.ErrNoResponse) {
			t.Fatalf("expected ErrNoResponse, got: %v", err)
		}

		attempts := countWrites(transport.Writes(), func(w string) bool { return w == "AT+CWQAP" })
		if attempts != 3 {
			t.Errorf("expected 3 write attempts, got %d", attempts)
		}
	})

	t.Run("ErrNoResponse when no sentinel arrives", func(t *testing.T) {
		device, transport := newTestDevice(t, func(cmd string) string {
			if cmd == "AT+CWQAP" {
				return "half a reply with no sentinel"
			}
			return ""
		})

		_, err := device.Execute(context.Background(), "AT+CWQAP", 30*time.Millisecond, 3)
		if !errors.Is(err, esp.ErrNoResponse) {
			t.Fatalf("expected ErrNoResponse, got: %v", err)
		}

		attempts := countWrites(transport.Writes(), func(w string) bool { return w == "AT+CWQAP" })
		if attempts < 3 {
			t.Errorf("expected at least 3 write attempts, got %d", attempts)
		}
	})

	t.Run("ErrNoResponse when the reply overflows the buffer", func(t *testing.T) {
		// A sentinel-free reply larger than the bounded buffer must end
		// the attempt instead of accumulating without limit.
		big := strings.Repeat("x", 5000)
		device, _ := newTestDevice(t, func(cmd string) string {
			if cmd == "AT+CWLAP" {
				return big
			}
			return ""
		})

		_, err := device.Execute(context.Background(), "AT+CWLAP", time.Second, 1)
		if !errors.Is(err, esp.ErrNoResponse) {
			t.Fatalf("expected ErrNoResponse, got: %v", err)
		}
	})

	t.Run("Stale bytes are discarded between exchanges", func(t *testing.T) {
		device, transport := newTestDevice(t, func(cmd string) string {
			if cmd == "AT+CIPSTATUS" {
				return "STATUS:5\r\n\r\nOK\r\n"
			}
			return ""
		})

		// Unsolicited noise before the exchange must not leak into the reply.
		transport.SendData("WIFI DISCONNECT\r\n")
		time.Sleep(10 * time.Millisecond)

		payload, err := device.Execute(context.Background(), "AT+CIPSTATUS", 0, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if bytes.Contains(payload, []byte("WIFI DISCONNECT")) {
			t.Errorf("stale bytes leaked into payload: %q", payload)
		}
	})

	t.Run("ErrAlreadyClosed after Close", func(t *testing.T) {
		device, _ := newTestDevice(t, nil)
		if err := device.Close(); err != nil {
			t.Fatalf("unexpected error from Close(): %v", err)
		}
		if _, err := device.Execute(context.Background(), "AT", 0, 1); !errors.Is(err, esp.ErrAlreadyClosed) {
			t.Errorf("expected ErrAlreadyClosed, got: %v", err)
		}
	})

	t.Run("Context cancellation aborts the exchange", func(t *testing.T) {
		device, _ := newTestDevice(t, nil)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		_, err := device.Execute(ctx, "AT+CWQAP", time.Second, 1)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got: %v", err)
		}
	})
}

func TestDeviceNew(t *testing.T) {
	t.Run("Initialization success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := esp.NewMockTransport(ctrl)
		mockDialer := esp.NewMockDialer(ctrl)

		mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil)

		// Reads block until a write queues a reply; closing the channel
		// makes the reader goroutine see EOF during shutdown.
		respond := make(chan []byte, 4)
		mockTransport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			data, ok := <-respond
			if !ok {
				return 0, io.EOF
			}
			return copy(p, data), nil
		}).AnyTimes()
		mockTransport.EXPECT().Write(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			respond <- []byte("\r\nOK\r\n")
			return len(p), nil
		}).Times(2) // probe + BLE off
		mockTransport.EXPECT().Close().DoAndReturn(func() error {
			close(respond)
			return nil
		})

		config, err := esp.NewConfigBuilder().
			WithDialer(mockDialer).
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}

		device, err := esp.New(context.Background(), config)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if device == nil {
			t.Fatal("New() should return a valid device on success")
		}
		if err := device.Close(); err != nil {
			t.Errorf("unexpected error from Close(): %v", err)
		}
	})

	t.Run("Dialer error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDialer := esp.NewMockDialer(ctrl)
		mockDialer.EXPECT().Dial(gomock.Any()).Return(nil, errors.New("connection failed"))

		config, err := esp.NewConfigBuilder().
			WithDialer(mockDialer).
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}

		device, err := esp.New(context.Background(), config)
		if err == nil {
			t.Error("expected error from dialer failure")
		}
		if device != nil {
			t.Error("New() should return nil device when dialer fails")
		}
	})

	t.Run("ErrNoDialer when no dialer provided", func(t *testing.T) {
		device, err := esp.New(context.Background(), esp.Config{})
		if !errors.Is(err, esp.ErrNoDialer) {
			t.Errorf("expected ErrNoDialer, got: %v", err)
		}
		if device != nil {
			t.Error("New() should return nil device when no dialer provided")
		}
	})

	t.Run("ErrNotInitialized on nil transport", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDialer := esp.NewMockDialer(ctrl)
		mockDialer.EXPECT().Dial(gomock.Any()).Return(nil, nil)

		config, err := esp.NewConfigBuilder().
			WithDialer(mockDialer).
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}

		_, err = esp.New(context.Background(), config)
		if !errors.Is(err, esp.ErrNotInitialized) {
			t.Errorf("expected ErrNotInitialized, got: %v", err)
		}
	})

	t.Run("Init failure when probe never answers", func(t *testing.T) {
		transport := esp.NewTestTransport()

		config, err := esp.NewConfigBuilder().
			WithDialer(testDialer{transport: transport}).
			WithCommandTimeout(20 * time.Millisecond).
			WithRetryBackoff(time.Millisecond).
			WithInitTimeout(500 * time.Millisecond).
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}

		device, err := esp.New(context.Background(), config)
		if !errors.Is(err, esp.ErrNoResponse) {
			t.Errorf("expected ErrNoResponse, got: %v", err)
		}
		if device != nil {
			t.Error("New() should return nil device when init fails")
		}
		if !strings.Contains(strings.Join(transport.Writes(), "\n"), "AT") {
			t.Error("expected the probe command to be written")
		}
	})
}

func TestDeviceClose(t *testing.T) {
	t.Run("ErrAlreadyClosed on double close", func(t *testing.T) {
		device, _ := newTestDevice(t, nil)

		if err := device.Close(); err != nil {
			t.Errorf("first close should succeed, got error: %v", err)
		}
		if err := device.Close(); !errors.Is(err, esp.ErrAlreadyClosed) {
			t.Errorf("expected ErrAlreadyClosed on second close, got: %v", err)
		}
	})
}
