package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/openclock/espwifi/esp"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	portFlag     string
	baudFlag     int
	configFlag   string
	logLevelFlag string
	passwordFlag string
	retriesFlag  int
)

var logger *slog.Logger

func main() {
	rootCmd := &cobra.Command{
		Use:   "wifictl",
		Short: "Drive an ESP-AT Wi-Fi co-processor over a serial link",
		Long: `wifictl talks to an ESP32-C3 (or compatible) radio running the ESP-AT
firmware over a serial port: scan for networks, join an access point,
query connection state, and synchronize the clock over SNTP.

Known networks and NTP settings are read from a config file
(default: wifictl.yaml in the current directory or $HOME).`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = newLogger(logLevelFlag)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&portFlag, "port", "p", "/dev/ttyUSB0", "Serial port of the co-processor")
	rootCmd.PersistentFlags().IntVarP(&baudFlag, "baud", "b", esp.DefaultBaudRate, "Baud rate")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Config file with known networks")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level (debug, info, warn, error)")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "List nearby access points",
		RunE:  runScan,
	}
	scanCmd.Flags().IntVar(&retriesFlag, "retries", 3, "Scan retries before giving up")

	joinCmd := &cobra.Command{
		Use:   "join <ssid>",
		Short: "Join an access point",
		Long: `Join the named access point. The password comes from --password or,
when omitted, from the known-networks config file.`,
		Args: cobra.ExactArgs(1),
		RunE: runJoin,
	}
	joinCmd.Flags().StringVar(&passwordFlag, "password", "", "Network password (overrides the config file)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the connection state",
		RunE:  runStatus,
	}

	ipCmd := &cobra.Command{
		Use:   "ip",
		Short: "Show the station IP address",
		RunE:  runIP,
	}

	macCmd := &cobra.Command{
		Use:   "mac",
		Short: "Show the station MAC address",
		RunE:  runMAC,
	}

	pingCmd := &cobra.Command{
		Use:   "ping <host>",
		Short: "Ping a host through the radio",
		Args:  cobra.ExactArgs(1),
		RunE:  runPing,
	}

	timeCmd := &cobra.Command{
		Use:   "time",
		Short: "Show the SNTP-synchronized time",
		RunE:  runTime,
	}

	synctimeCmd := &cobra.Command{
		Use:   "synctime",
		Short: "Join a known network and synchronize the clock over SNTP",
		Long: `Scan for access points, join the first one found in the known-networks
config, enable SNTP, wait for the time to synchronize, disconnect, and
print the synchronized time.`,
		RunE: runSyncTime,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("wifictl %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	rootCmd.AddCommand(scanCmd, joinCmd, statusCmd, ipCmd, macCmd, pingCmd, timeCmd, synctimeCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// rootContext is cancelled on SIGINT/SIGTERM so an in-flight exchange gives
// up instead of leaving the port half-read.
func rootContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func openDevice(ctx context.Context) (*esp.Device, error) {
	config, err := esp.NewConfigBuilder().
		WithDialer(esp.SerialDialer{
			PortName: portFlag,
			Mode:     &serial.Mode{BaudRate: baudFlag, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit},
		}).
		WithLogger(logger.With("component", "esp")).
		Build()
	if err != nil {
		return nil, err
	}
	device, err := esp.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("open device on %s: %w", portFlag, err)
	}
	return device, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := rootContext()
	defer cancel()

	device, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer device.Close()

	stop := spinner("Scanning for networks")
	records, err := device.ScanAccessPoints(ctx, retriesFlag)
	stop()
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No networks found")
		return nil
	}
	fmt.Printf("%-32s %-6s %-18s %-4s %s\n", "SSID", "RSSI", "MAC", "CH", "ENCRYPTION")
	for _, ap := range records {
		fmt.Printf("%-32s %-6s %-18s %-4s %s\n",
			ap.SSID, ap.RSSI, ap.MAC, ap.Channel, ap.Encryption)
	}
	return nil
}

func runJoin(cmd *cobra.Command, args []string) error {
	ssid := args[0]

	password := passwordFlag
	if password == "" {
		cfg, err := loadFileConfig(configFlag)
		if err != nil {
			return err
		}
		network, ok := cfg.lookup(ssid)
		if !ok {
			return fmt.Errorf("no password given and %q is not in the known networks", ssid)
		}
		password = network.Password
	}

	ctx, cancel := rootContext()
	defer cancel()

	device, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer device.Close()

	stop := spinner(fmt.Sprintf("Joining %s", ssid))
	info, err := device.JoinAccessPoint(ctx, ssid, password)
	stop()
	if err != nil {
		return err
	}

	fmt.Printf("Joined %s (%s), channel %d, RSSI %d dBm\n",
		info.SSID, info.BSSID, info.Channel, info.RSSI)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := rootContext()
	defer cancel()

	device, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer device.Close()

	status, err := device.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Println(status)
	return nil
}

func runIP(cmd *cobra.Command, args []string) error {
	ctx, cancel := rootContext()
	defer cancel()

	device, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer device.Close()

	ip, err := device.StationIP(ctx)
	if err != nil {
		return err
	}
	fmt.Println(ip)
	return nil
}

func runMAC(cmd *cobra.Command, args []string) error {
	ctx, cancel := rootContext()
	defer cancel()

	device, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer device.Close()

	mac, err := device.StationMAC(ctx)
	if err != nil {
		return err
	}
	fmt.Println(mac)
	return nil
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx, cancel := rootContext()
	defer cancel()

	device, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer device.Close()

	latency, err := device.Ping(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", args[0], latency)
	return nil
}

func runTime(cmd *cobra.Command, args []string) error {
	ctx, cancel := rootContext()
	defer cancel()

	device, err := openDevice(ctx)
	if err != nil {
		return err
	}
	defer device.Close()

	now, err := device.Time(ctx)
	if err != nil {
		return err
	}
	fmt.Println(now.Format(time.RFC3339))
	return nil
}
