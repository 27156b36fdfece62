package at

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrBadReply is returned when a reply lacks a landmark line that the
	// protocol guarantees is always present for the issued command.
	ErrBadReply = errors.New("bad reply from device")

	// ErrNotFound is returned when an optional field (for example the
	// station IP) is absent from an otherwise well-formed reply.
	ErrNotFound = errors.New("field not found in reply")
)

// Value holds one scan record field. Fields on the wire are nominally
// numeric, but firmware variants occasionally report free text; a Value
// carries whichever form the device sent, decided at parse time.
type Value struct {
	n       int
	text    string
	numeric bool
}

// IntValue returns a numeric Value.
func IntValue(n int) Value {
	return Value{n: n, numeric: true}
}

// TextValue returns a textual Value.
func TextValue(s string) Value {
	return Value{text: s}
}

// IsNumeric reports whether the field was decoded as an integer.
func (v Value) IsNumeric() bool { return v.numeric }

// Int returns the numeric form, or 0 for textual fields.
func (v Value) Int() int { return v.n }

// Text returns the textual form, or "" for numeric fields.
func (v Value) Text() string { return v.text }

func (v Value) String() string {
	if v.numeric {
		return strconv.Itoa(v.n)
	}
	return v.text
}

// parseValue decodes a raw scan field, falling back to the trimmed text
// when the token is not a valid integer.
func parseValue(tok []byte) Value {
	trimmed := strings.TrimSpace(string(tok))
	if n, err := strconv.Atoi(trimmed); err == nil {
		return IntValue(n)
	}
	return TextValue(strings.Trim(trimmed, `"`))
}

// ConnectionInfo describes the access point the station is joined to,
// as reported by AT+CWJAP?.
type ConnectionInfo struct {
	SSID           string
	BSSID          string
	Channel        int
	RSSI           int
	PCIEnabled     int
	ReconnInterval int
	ListenInterval int
	ScanMode       int
	PMF            int
}

// AccessPoint is one record from an AT+CWLAP scan. Field order follows the
// wire format. Fields that are nominally numeric keep whatever the device
// sent, so a single odd field never discards the record.
type AccessPoint struct {
	Encryption  string
	SSID        string
	RSSI        Value
	MAC         string
	Channel     Value
	ScanType    Value
	MinScanTime Value
	MaxScanTime Value
	PairCipher  Value
	GroupCipher Value
	Band        Value
	WPS         Value
}

// Lines splits a success-stripped reply payload into its non-empty
// CRLF-delimited lines.
func Lines(payload []byte) [][]byte {
	var lines [][]byte
	for _, line := range bytes.Split(payload, []byte(CRLF)) {
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}

// ParseMode extracts the radio mode from a +CWMODE: reply. The mode query
// always answers, so a payload without the landmark is a protocol error.
func ParseMode(payload []byte) (int, error) {
	for _, line := range Lines(payload) {
		rest, ok := bytes.CutPrefix(line, []byte(PrefixMode))
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(string(rest)))
		if err != nil {
			return 0, fmt.Errorf("%w: mode %q", ErrBadReply, rest)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: no %s line", ErrBadReply, PrefixMode)
}

// ParseStatusCode extracts the numeric code from a STATUS: line.
// ok is false when the payload carries no status line; the caller decides
// how to treat the absence.
func ParseStatusCode(payload []byte) (code int, ok bool) {
	for _, line := range Lines(payload) {
		rest, found := bytes.CutPrefix(line, []byte(PrefixStatus))
		if !found {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(string(rest)))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// ParseJoinStatus extracts a ConnectionInfo from a +CWJAP: reply line of
// nine comma-separated fields. ok is false when the line is absent (the
// station is not joined) or garbled; a partial record is never produced.
func ParseJoinStatus(payload []byte) (*ConnectionInfo, bool) {
	for _, line := range Lines(payload) {
		rest, found := bytes.CutPrefix(line, []byte(PrefixJoinStatus))
		if !found {
			continue
		}
		fields := strings.Split(string(rest), ",")
		if len(fields) != 9 {
			return nil, false
		}
		info := &ConnectionInfo{
			SSID:  strings.Trim(strings.TrimSpace(fields[0]), `"`),
			BSSID: strings.Trim(strings.TrimSpace(fields[1]), `"`),
		}
		ints := []*int{
			&info.Channel, &info.RSSI, &info.PCIEnabled, &info.ReconnInterval,
			&info.ListenInterval, &info.ScanMode, &info.PMF,
		}
		for i, dst := range ints {
			n, err := strconv.Atoi(strings.TrimSpace(fields[i+2]))
			if err != nil {
				return nil, false
			}
			*dst = n
		}
		return info, true
	}
	return nil, false
}

// ParseScan extracts every +CWLAP:( record from a scan reply, preserving
// device order. Each record carries twelve positional fields; numeric
// conversion failures degrade the field to its trimmed text instead of
// dropping the record.
func ParseScan(payload []byte) []AccessPoint {
	var records []AccessPoint
	for _, line := range Lines(payload) {
		rest, found := bytes.CutPrefix(line, []byte(PrefixScan))
		if !found {
			continue
		}
		rest = bytes.TrimSuffix(rest, []byte(")"))
		fields := bytes.Split(rest, []byte(","))

		var ap AccessPoint
		for i, tok := range fields {
			if i >= 12 {
				break
			}
			switch i {
			case 0:
				v := parseValue(tok)
				if v.IsNumeric() {
					ap.Encryption = EncryptionLabel(v.Int())
				} else {
					ap.Encryption = "Unknown"
				}
			case 1:
				ap.SSID = strings.Trim(strings.TrimSpace(string(tok)), `"`)
			case 2:
				ap.RSSI = parseValue(tok)
			case 3:
				ap.MAC = strings.Trim(strings.TrimSpace(string(tok)), `"`)
			case 4:
				ap.Channel = parseValue(tok)
			case 5:
				ap.ScanType = parseValue(tok)
			case 6:
				ap.MinScanTime = parseValue(tok)
			case 7:
				ap.MaxScanTime = parseValue(tok)
			case 8:
				ap.PairCipher = parseValue(tok)
			case 9:
				ap.GroupCipher = parseValue(tok)
			case 10:
				ap.Band = parseValue(tok)
			case 11:
				ap.WPS = parseValue(tok)
			}
		}
		records = append(records, ap)
	}
	return records
}

// ParseStationIP extracts the station IP address from an AT+CIFSR reply.
func ParseStationIP(payload []byte) (string, error) {
	return parseQuoted(payload, PrefixStationIP, "station IP")
}

// ParseStationMAC extracts the station MAC address from an AT+CIFSR reply.
func ParseStationMAC(payload []byte) (string, error) {
	return parseQuoted(payload, PrefixStationMAC, "station MAC")
}

func parseQuoted(payload []byte, prefix, what string) (string, error) {
	for _, line := range Lines(payload) {
		rest, found := bytes.CutPrefix(line, []byte(prefix))
		if !found {
			continue
		}
		if i := bytes.IndexByte(rest, '"'); i >= 0 {
			return string(rest[:i]), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, what)
}

// ParsePing extracts the round-trip time in milliseconds from a ping reply.
//
// The reply carries a single line starting with "+". Firmware variants
// differ on the shape: some emit "+PING:<ms>", others a bare "+<ms>"; both
// are accepted, the sub-prefixed form first. A "+" line whose numeric
// payload does not convert reports ok=false: the ping outcome is
// indeterminate, not fatal. A payload with no "+" line at all is a
// protocol error.
func ParsePing(payload []byte) (ms int, ok bool, err error) {
	for _, line := range Lines(payload) {
		if len(line) == 0 || line[0] != '+' {
			continue
		}
		num := string(line[1:])
		if rest, found := bytes.CutPrefix(line, []byte(PrefixPing)); found {
			num = string(rest)
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(num))
		if convErr != nil {
			return 0, false, nil
		}
		return n, true, nil
	}
	return 0, false, fmt.Errorf("%w: no ping line", ErrBadReply)
}

// ParseSNTPTime extracts the synchronized time from an AT+CIPSNTPTIME?
// reply. The device reports a ctime-style string ("Thu Aug  4 14:03:02
// 2026"); before the first SNTP sync it reports the epoch, which is
// treated the same as an absent line.
func ParseSNTPTime(payload []byte) (time.Time, error) {
	for _, line := range Lines(payload) {
		rest, found := bytes.CutPrefix(line, []byte(PrefixSNTPTime))
		if !found {
			continue
		}
		t, err := time.Parse(time.ANSIC, strings.TrimSpace(string(rest)))
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: time %q", ErrBadReply, rest)
		}
		if t.Year() <= 1970 {
			return time.Time{}, fmt.Errorf("%w: time not yet synchronized", ErrNotFound)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: synchronized time", ErrNotFound)
}
