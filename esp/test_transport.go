package esp

import (
	"io"
	"strings"
	"sync"
)

// TestTransport is a test helper that simulates a blocking transport using
// channels. The device's reader goroutine continuously reads from the
// transport, so reads must block until data is available (like a real
// serial port would). Every write is recorded, and an optional responder
// turns written commands into scripted replies.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	pending  []byte
	writes   []string
	respond  func(cmd string) string
	closed   bool
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 16),
	}
}

// RespondWith installs a responder invoked for each written command (CRLF
// stripped). A non-empty return value is queued as reply bytes.
func (t *TestTransport) RespondWith(fn func(cmd string) string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.respond = fn
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	cmd := strings.TrimSuffix(string(p), "\r\n")
	t.writes = append(t.writes, cmd)
	fn := t.respond
	t.mu.Unlock()

	if fn != nil {
		if resp := fn(cmd); resp != "" {
			t.SendData(resp)
		}
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	if len(t.pending) == 0 {
		data, ok := <-t.readChan
		if !ok {
			return 0, io.EOF
		}
		t.pending = data
	}
	n = copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the co-processor.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Writes returns the commands written so far, one entry per Write call,
// with the trailing CRLF stripped.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.writes))
	copy(out, t.writes)
	return out
}
