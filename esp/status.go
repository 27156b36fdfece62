package esp

import "strconv"

// ConnectionStatus is the logical connection state derived from the numeric
// code reported by AT+CIPSTATUS.
type ConnectionStatus int

const (
	// StatusUnknown covers every code outside the documented set.
	StatusUnknown ConnectionStatus = iota
	// StatusNotConnected means the station is not associated with an AP.
	StatusNotConnected
	// StatusAPConnected means the station is associated and has an IP.
	StatusAPConnected
	// StatusSocketOpen means a TCP/UDP connection is established.
	StatusSocketOpen
	// StatusSocketClosed means the last TCP/UDP connection was closed.
	StatusSocketClosed
)

// StatusFromCode maps the device-reported code to a ConnectionStatus.
// The protocol reports 5 for "not connected"; codes 2, 3 and 4 report the
// connected states.
func StatusFromCode(code int) ConnectionStatus {
	switch code {
	case 2:
		return StatusAPConnected
	case 3:
		return StatusSocketOpen
	case 4:
		return StatusSocketClosed
	case 5:
		return StatusNotConnected
	default:
		return StatusUnknown
	}
}

func (s ConnectionStatus) String() string {
	switch s {
	case StatusNotConnected:
		return "not connected"
	case StatusAPConnected:
		return "connected to AP"
	case StatusSocketOpen:
		return "socket open"
	case StatusSocketClosed:
		return "socket closed"
	default:
		return "unknown"
	}
}

// Mode is the radio operating mode set via AT+CWMODE.
type Mode int

const (
	// ModeStation joins existing access points.
	ModeStation Mode = 1
	// ModeSoftAP runs a standalone access point.
	ModeSoftAP Mode = 2
	// ModeSoftAPStation runs both at once.
	ModeSoftAPStation Mode = 3
)

func (m Mode) valid() bool {
	return m == ModeStation || m == ModeSoftAP || m == ModeSoftAPStation
}

func (m Mode) String() string {
	switch m {
	case ModeStation:
		return "station"
	case ModeSoftAP:
		return "softAP"
	case ModeSoftAPStation:
		return "softAP+station"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}
