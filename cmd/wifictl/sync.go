package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/openclock/espwifi/at"
	"github.com/openclock/espwifi/esp"
)

const (
	scanRetries  = 3
	syncDeadline = 15 * time.Second
	syncPoll     = 500 * time.Millisecond
)

// runSyncTime joins the first known network in range, enables SNTP, waits
// for the clock to synchronize, disconnects, and prints the time.
func runSyncTime(cmd *cobra.Command, args []string) error {
	cfg, err := loadFileConfig(configFlag)
	if err != nil {
		return err
	}
	if len(cfg.Networks) == 0 {
		return fmt.Errorf("no known networks configured; nothing to join")
	}

	ctx, cancel := rootContext()
	defer cancel()

	device, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer device.Close()

	stop := spinner("Scanning for known networks")
	records, err := device.ScanAccessPoints(ctx, scanRetries)
	stop()
	if err != nil {
		return err
	}

	joined := false
	for _, ap := range records {
		network, ok := cfg.lookup(ap.SSID)
		if !ok {
			continue
		}
		logger.Info("joining known network", "ssid", network.SSID, "rssi", ap.RSSI.String())

		stop := spinner(fmt.Sprintf("Joining %s", network.SSID))
		_, err := device.JoinAccessPoint(ctx, network.SSID, network.Password)
		stop()
		if err != nil {
			logger.Warn("join failed, trying the next known network",
				"ssid", network.SSID, "error", err)
			continue
		}
		if connected, err := device.IsConnected(ctx); err == nil && connected {
			joined = true
			break
		}
	}
	if !joined {
		return fmt.Errorf("no known network in range")
	}

	if err := device.ConfigureSNTP(ctx, cfg.NTP.TimezoneOffset, cfg.NTP.Servers...); err != nil {
		return fmt.Errorf("configure SNTP: %w", err)
	}

	synced, err := waitForTime(ctx, device)
	if err != nil {
		return err
	}

	// The clock keeps running locally; the network is no longer needed.
	if err := device.Disconnect(ctx); err != nil {
		logger.Warn("could not disconnect", "error", err)
	}

	fmt.Println(synced.Format(time.RFC3339))
	return nil
}

// waitForTime polls the device until SNTP reports a synchronized clock.
func waitForTime(ctx context.Context, device *esp.Device) (time.Time, error) {
	stop := spinner("Waiting for time sync")
	defer stop()

	deadline := time.Now().Add(syncDeadline)
	for {
		select {
		case <-ctx.Done():
			return time.Time{}, ctx.Err()
		case <-time.After(syncPoll):
		}

		synced, err := device.Time(ctx)
		if err == nil {
			return synced, nil
		}
		if !errors.Is(err, at.ErrNotFound) {
			return time.Time{}, err
		}
		if time.Now().After(deadline) {
			return time.Time{}, fmt.Errorf("time did not synchronize within %s", syncDeadline)
		}
	}
}

// spinner shows an indeterminate progress spinner on stderr until the
// returned stop function is called.
func spinner(description string) func() {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(100 * time.Millisecond):
				bar.Add(1)
			}
		}
	}()
	return func() {
		close(done)
		bar.Finish()
	}
}
