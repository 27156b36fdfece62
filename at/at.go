package at

import (
	"fmt"
	"strings"
)

const (
	// Terminal Control
	CRLF = "\r\n"

	// Response Codes
	OK    = "OK"
	ERROR = "ERROR"

	// Commands
	CmdProbe         = "AT"
	CmdModeQuery     = "AT+CWMODE?"
	CmdJoinQuery     = "AT+CWJAP?"
	CmdScan          = "AT+CWLAP"
	CmdIfInfo        = "AT+CIFSR"
	CmdStatus        = "AT+CIPSTATUS"
	CmdEnableIPv6    = "AT+CIPV6=1"
	CmdSNTPTimeQuery = "AT+CIPSNTPTIME?"
	CmdDisconnect    = "AT+CWQAP"
	CmdDisableBLE    = "AT+BLEINIT=0"

	// Reply landmarks
	PrefixMode       = "+CWMODE:"
	PrefixJoinStatus = "+CWJAP:"
	PrefixScan       = "+CWLAP:("
	PrefixStatus     = "STATUS:"
	PrefixStationIP  = `+CIFSR:STAIP,"`
	PrefixStationMAC = `+CIFSR:STAMAC,"`
	PrefixSNTPTime   = "+CIPSNTPTIME:"
	PrefixPing       = "+PING:"

	// Join progress markers emitted by AT+CWJAP before the final sentinel.
	MarkerConnected = "WIFI CONNECTED"
	MarkerGotIP     = "WIFI GOT IP"
)

// Exchange sentinels. A reply is complete once the accumulated buffer ends
// with one of these byte sequences; there is no other framing on the wire.
var (
	SuccessSentinel = []byte(OK + CRLF)
	FailureSentinel = []byte(ERROR + CRLF)
)

// SetModeCommand builds the command that switches the radio mode.
func SetModeCommand(mode int) string {
	return fmt.Sprintf("AT+CWMODE=%d", mode)
}

// JoinCommand builds the command that joins an access point.
func JoinCommand(ssid, password string) string {
	return fmt.Sprintf(`AT+CWJAP="%s","%s"`, ssid, password)
}

// PingCommand builds the command that pings a host by name or address.
func PingCommand(host string) string {
	return fmt.Sprintf(`AT+PING="%s"`, strings.Trim(host, `"`))
}

// SNTPConfigCommand builds the command that enables SNTP with the given
// timezone offset (in hours) and up to three time servers.
func SNTPConfigCommand(tzOffset int, servers []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "AT+CIPSNTPCFG=1,%d", tzOffset)
	for _, s := range servers {
		fmt.Fprintf(&b, `,"%s"`, s)
	}
	return b.String()
}

// encryptionLabels maps the numeric encryption code reported in a scan
// record to a human-readable label.
var encryptionLabels = map[int]string{
	0: "None",
	1: "WEP",
	2: "WPA-PSK",
	3: "WPA2-PSK",
	4: "WPA/WPA2-PSK",
	5: "WPA2-Enterprise",
	6: "WPA3-PSK",
	7: "WPA2/WPA3-PSK",
	8: "WAPI-PSK",
	9: "OWE",
}

// EncryptionLabel returns the label for a scan record's encryption code.
// Codes outside the documented range map to "Unknown".
func EncryptionLabel(code int) string {
	if label, ok := encryptionLabels[code]; ok {
		return label
	}
	return "Unknown"
}
