package esp

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/openclock/espwifi/at"
)

const (
	// joinAttempts bounds how often a join command is issued per call.
	joinAttempts = 3
	// connectAttempts bounds the outer ConnectWithRetry loop.
	connectAttempts = 3
	// connectBackoff is the pause between failed connect attempts.
	connectBackoff = 2 * time.Second

	joinStatusTimeout = 10 * time.Second
	modeSetTimeout    = 3 * time.Second
	pingTimeout       = 5 * time.Second
	ipv6Timeout       = 3 * time.Second
)

// DefaultNTPServers are the time servers used when ConfigureSNTP is called
// without any.
var DefaultNTPServers = []string{"0.pool.ntp.org", "1.pool.ntp.org", "time.google.com"}

// Status queries AT+CIPSTATUS and maps the reported code. A reply without
// a STATUS line yields StatusUnknown without an error.
func (d *Device) Status(ctx context.Context) (ConnectionStatus, error) {
	reply, err := d.Execute(ctx, at.CmdStatus, d.config.CommandTimeout, d.config.MaxRetries)
	if err != nil {
		return StatusUnknown, err
	}
	code, ok := at.ParseStatusCode(reply)
	if !ok {
		return StatusUnknown, nil
	}
	return StatusFromCode(code), nil
}

// IsConnected reports whether the station is associated with an access
// point, with or without an open socket.
func (d *Device) IsConnected(ctx context.Context) (bool, error) {
	status, err := d.Status(ctx)
	if err != nil {
		return false, err
	}
	switch status {
	case StatusAPConnected, StatusSocketOpen, StatusSocketClosed:
		return true, nil
	default:
		return false, nil
	}
}

// Mode queries the current radio mode.
func (d *Device) Mode(ctx context.Context) (Mode, error) {
	reply, err := d.Execute(ctx, at.CmdModeQuery, d.config.CommandTimeout, d.config.MaxRetries)
	if err != nil {
		return 0, err
	}
	n, err := at.ParseMode(reply)
	if err != nil {
		return 0, err
	}
	return Mode(n), nil
}

// SetMode switches the radio mode. Modes outside the enumerated set are
// rejected with ErrInvalidMode before any I/O.
func (d *Device) SetMode(ctx context.Context, mode Mode) error {
	if !mode.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(mode))
	}
	_, err := d.Execute(ctx, at.SetModeCommand(int(mode)), modeSetTimeout, d.config.MaxRetries)
	return err
}

func (d *Device) ensureStationMode(ctx context.Context) error {
	mode, err := d.Mode(ctx)
	if err != nil {
		return err
	}
	if mode != ModeStation {
		return d.SetMode(ctx, ModeStation)
	}
	return nil
}

// JoinAccessPoint associates the station with the named access point and
// returns the resulting connection record.
//
// When the device already reports a join to the requested SSID the record
// is returned as-is and no join command is issued; joins are slow, so the
// short-circuit makes repeated calls cheap. Otherwise the join command is
// issued up to three times, each accepted only when the raw reply carries
// both the "WIFI CONNECTED" and "WIFI GOT IP" markers, after which the
// join status is re-queried for the record. Exhausting every attempt
// returns ErrJoinFailed.
func (d *Device) JoinAccessPoint(ctx context.Context, ssid, password string) (*at.ConnectionInfo, error) {
	if err := d.ensureStationMode(ctx); err != nil {
		return nil, err
	}

	reply, err := d.Execute(ctx, at.CmdJoinQuery, joinStatusTimeout, d.config.MaxRetries)
	if err != nil {
		return nil, err
	}
	if info, ok := at.ParseJoinStatus(reply); ok && info.SSID == ssid {
		d.logger.Debug("already joined", "ssid", ssid)
		return info, nil
	}

	for attempt := 1; attempt <= joinAttempts; attempt++ {
		raw, err := d.Execute(ctx, at.JoinCommand(ssid, password), d.config.JoinTimeout, d.config.MaxRetries)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.logger.Debug("join attempt failed", "ssid", ssid, "attempt", attempt, "error", err)
			continue
		}
		if !bytes.Contains(raw, []byte(at.MarkerConnected)) || !bytes.Contains(raw, []byte(at.MarkerGotIP)) {
			d.logger.Debug("join reply missing markers", "ssid", ssid, "attempt", attempt)
			continue
		}

		reply, err := d.Execute(ctx, at.CmdJoinQuery, joinStatusTimeout, d.config.MaxRetries)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if info, ok := at.ParseJoinStatus(reply); ok {
			return info, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrJoinFailed, ssid)
}

// ConnectWithRetry keeps trying to join the named access point, sleeping
// between failures, and reports whether the station ended up connected.
// Failures are logged rather than returned; callers that need the cause
// should use JoinAccessPoint directly.
func (d *Device) ConnectWithRetry(ctx context.Context, ssid, password string) bool {
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(connectBackoff):
			}
		}

		connected, err := d.IsConnected(ctx)
		if err == nil && connected {
			return true
		}
		if _, err := d.JoinAccessPoint(ctx, ssid, password); err == nil {
			return true
		} else {
			d.logger.Warn("failed to connect, retrying",
				"ssid", ssid, "attempt", attempt, "error", err)
		}
	}
	return false
}

// ScanAccessPoints scans for nearby access points in device order. A scan
// attempt that times out is silently retried up to retries times;
// exhausting them yields an empty list, not an error: the radio simply
// found nothing usable.
func (d *Device) ScanAccessPoints(ctx context.Context, retries int) ([]at.AccessPoint, error) {
	if retries < 1 {
		retries = 1
	}
	for attempt := 1; attempt <= retries; attempt++ {
		if err := d.ensureStationMode(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		reply, err := d.Execute(ctx, at.CmdScan, d.config.ScanTimeout, d.config.MaxRetries)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.logger.Debug("scan attempt failed", "attempt", attempt, "error", err)
			continue
		}
		return at.ParseScan(reply), nil
	}
	return []at.AccessPoint{}, nil
}

// StationIP returns the station's IP address as a dotted string.
func (d *Device) StationIP(ctx context.Context) (string, error) {
	reply, err := d.Execute(ctx, at.CmdIfInfo, d.config.CommandTimeout, d.config.MaxRetries)
	if err != nil {
		return "", err
	}
	return at.ParseStationIP(reply)
}

// StationMAC returns the station's MAC address.
func (d *Device) StationMAC(ctx context.Context) (string, error) {
	reply, err := d.Execute(ctx, at.CmdIfInfo, d.config.CommandTimeout, d.config.MaxRetries)
	if err != nil {
		return "", err
	}
	return at.ParseStationMAC(reply)
}

// EnableIPv6 turns on IPv6 support on the co-processor.
func (d *Device) EnableIPv6(ctx context.Context) error {
	_, err := d.Execute(ctx, at.CmdEnableIPv6, ipv6Timeout, d.config.MaxRetries)
	return err
}

// DisableBLE turns off BLE coexistence, freeing radio time for Wi-Fi.
// New runs this during init unless the config keeps BLE on.
func (d *Device) DisableBLE(ctx context.Context) error {
	_, err := d.Execute(ctx, at.CmdDisableBLE, d.config.CommandTimeout, d.config.MaxRetries)
	return err
}

// Ping measures the round-trip time to a host. IPv6 is enabled first so
// literal IPv6 targets work. An answer without a usable latency returns
// ErrPingFailed; the host may still be reachable.
func (d *Device) Ping(ctx context.Context, host string) (time.Duration, error) {
	if err := d.EnableIPv6(ctx); err != nil {
		return 0, err
	}
	reply, err := d.Execute(ctx, at.PingCommand(host), pingTimeout, d.config.MaxRetries)
	if err != nil {
		return 0, err
	}
	ms, ok, err := at.ParsePing(reply)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrPingFailed, host)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Disconnect leaves the current access point.
func (d *Device) Disconnect(ctx context.Context) error {
	_, err := d.Execute(ctx, at.CmdDisconnect, d.config.CommandTimeout, d.config.MaxRetries)
	return err
}

// ConfigureSNTP enables SNTP with the given timezone offset (hours) and
// time servers. Without servers the defaults are used; the firmware
// accepts at most three.
func (d *Device) ConfigureSNTP(ctx context.Context, tzOffset int, servers ...string) error {
	if len(servers) == 0 {
		servers = DefaultNTPServers
	}
	if len(servers) > 3 {
		servers = servers[:3]
	}
	_, err := d.Execute(ctx, at.SNTPConfigCommand(tzOffset, servers), d.config.CommandTimeout, d.config.MaxRetries)
	return err
}

// Time queries the SNTP-synchronized time. Before the first successful
// sync the device reports the epoch, which surfaces as at.ErrNotFound.
func (d *Device) Time(ctx context.Context) (time.Time, error) {
	reply, err := d.Execute(ctx, at.CmdSNTPTimeQuery, d.config.CommandTimeout, d.config.MaxRetries)
	if err != nil {
		return time.Time{}, err
	}
	return at.ParseSNTPTime(reply)
}
