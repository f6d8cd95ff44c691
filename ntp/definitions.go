package ntp

import "time"

const (
	// SizeHeader is the size of an NTP packet without extension fields or MAC.
	SizeHeader = 48
	// ServerPort is the well known NTP port.
	ServerPort = 123
	// Version4 is the current NTP version. See [RFC5905].
	//
	// [RFC5905]: https://tools.ietf.org/html/rfc5905
	Version4 uint8 = 4
)

// LeapIndicator represents the leap second indicator.
// It indicates whether there is no warning, an extra second (61 seconds in the last minute),
// or a missing second (59 seconds in the last minute).
type LeapIndicator uint8

const (
	LeapNoWarning       LeapIndicator = iota // no warning
	LeapLastMinute61                         // last minute 61
	LeapLastMinute59                         // last minute 59
	LeapNotSynchronized                      // not synchronized
)

// Stratum represents the stratum level of the NTP server.
type Stratum uint8

const (
	// If the Stratum field is 0, which implies unspecified or invalid, the
	// Reference Identifier field can be used to convey messages useful for
	// status reporting and access control.  These are called Kiss-o'-Death
	// (KoD) packets and the ASCII messages they convey are called kiss codes.
	StratumUnspecified Stratum = 0  // unspecified
	StratumPrimary     Stratum = 1  // primary
	StratumUnsync      Stratum = 16 // unsynchronized
)

// String returns a human readable representation of the Stratum.
func (s Stratum) String() string {
	switch s {
	case 0:
		return "unspecified"
	case 1:
		return "primary"
	case 16:
		return "unsynchronized"
	}
	if s < 16 {
		return "secondary"
	}
	return "invalid"
}

// IsSecondary reports whether the server is synchronized to another NTP
// server, in which case the reference identifier holds its IPv4 address.
func (s Stratum) IsSecondary() bool {
	return s > 1 && s < 16
}

// Mode represents the mode of the NTP message.
// It can be undefined, symmetric active, symmetric passive, client, server, broadcast,
// NTP control message, or private use.
type Mode uint8

const (
	modeUndef             Mode = iota // undefined
	ModeSymmetricActive               // symmetric active
	ModeSymmetricPassive              // symmetric passive
	ModeClient                        // client
	ModeServer                        // server
	ModeBroadcast                     // broadcast
	ModeNTPControlMessage             // control message
	ModePrivateUse                    // private use
)

// Short is the 32 bit NTP short format: 16 bit seconds and 16 bit fraction.
type Short uint32

// Seconds returns the integer seconds of s.
func (s Short) Seconds() uint16 { return uint16(s >> 16) }

// Fraction returns the fractional part of s in units of 2^-16 seconds.
func (s Short) Fraction() uint16 { return uint16(s) }

// Float returns s in seconds.
func (s Short) Float() float64 {
	return float64(s.Seconds()) + float64(s.Fraction())/(1<<16)
}

// Timestamp is the 64 bit NTP timestamp format: 32 bit seconds since the
// 1900 epoch and 32 bit fraction.
type Timestamp struct {
	sec  uint32
	frac uint32
}

// TimestampFromUint64 returns the Timestamp encoded in the 64 bit value ts.
func TimestampFromUint64(ts uint64) Timestamp {
	return Timestamp{sec: uint32(ts >> 32), frac: uint32(ts)}
}

// Seconds returns the integer seconds of t since the NTP epoch.
func (t Timestamp) Seconds() uint32 { return t.sec }

// Fraction returns the fractional part of t in units of 2^-32 seconds.
func (t Timestamp) Fraction() uint32 { return t.frac }

// Uint64 returns the wire representation of t.
func (t Timestamp) Uint64() uint64 { return uint64(t.sec)<<32 | uint64(t.frac) }

// IsZero reports whether t is the zero timestamp, which NTP uses for "unknown".
func (t Timestamp) IsZero() bool { return t == Timestamp{} }

// Float returns t in seconds since the NTP epoch.
func (t Timestamp) Float() float64 {
	return float64(t.sec) + float64(t.frac)/(1<<32)
}

// Time returns t as a [time.Time]. The zero Timestamp returns the zero time.
// Era 0 is assumed.
func (t Timestamp) Time() time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	nsec := (uint64(t.frac) * 1e9) >> 32
	return BaseTime().Add(time.Duration(t.sec)*time.Second + time.Duration(nsec))
}

// BaseTime returns the NTP epoch, 1900-01-01 00:00 UTC.
func BaseTime() time.Time {
	return time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
}
