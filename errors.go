package dissect

import (
	"strconv"

	"github.com/soypat/dissect/token"
)

type errGeneric uint8

// Generic errors of the decoding core.
const (
	_                    errGeneric = iota // non-initialized err
	ErrOutOfBounds                         // dissect: out of bounds
	ErrMalformed                           // dissect: malformed data
	ErrProtocolViolation                   // dissect: decoder contract violation
	ErrDepthExceeded                       // dissect: dispatch depth exceeded
	ErrFrozen                              // dissect: frame tree is read-only
	ErrClosed                              // dissect: session closed
	ErrBadState                            // dissect: invalid frame state
	ErrShortBuffer                         // dissect: short buffer
	ErrInvalidLengthField                  // dissect: invalid length field
	ErrBadCRC                              // dissect: incorrect checksum
)

var errGenericNames = [...]string{
	ErrOutOfBounds:        "dissect: out of bounds",
	ErrMalformed:          "dissect: malformed data",
	ErrProtocolViolation:  "dissect: decoder contract violation",
	ErrDepthExceeded:      "dissect: dispatch depth exceeded",
	ErrFrozen:             "dissect: frame tree is read-only",
	ErrClosed:             "dissect: session closed",
	ErrBadState:           "dissect: invalid frame state",
	ErrShortBuffer:        "dissect: short buffer",
	ErrInvalidLengthField: "dissect: invalid length field",
	ErrBadCRC:             "dissect: incorrect checksum",
}

func (err errGeneric) Error() string {
	if int(err) < len(errGenericNames) && errGenericNames[err] != "" {
		return errGenericNames[err]
	}
	return "dissect: errGeneric(" + strconv.Itoa(int(err)) + ")"
}

// BoundsError is returned when a [Slice] is created or read outside of its valid range.
// It matches [ErrOutOfBounds] with errors.Is.
type BoundsError struct {
	Off  int // Requested offset.
	Len  int // Requested length.
	Size int // Length of the slice that was indexed.
}

func (be *BoundsError) Error() string {
	return "dissect: out of bounds [" + strconv.Itoa(be.Off) + ":" + strconv.Itoa(be.Off+be.Len) +
		"] with length " + strconv.Itoa(be.Size)
}

func (be *BoundsError) Unwrap() error { return ErrOutOfBounds }

// ErrorKind marks a [Layer] that could not be fully decoded.
type ErrorKind uint8

const (
	ErrorNone            ErrorKind = iota // none
	ErrorMalformed                        // malformed
	ErrorOutOfBounds                      // out-of-bounds
	ErrorUnknownProtocol                  // unknown-protocol
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorMalformed:
		return "malformed"
	case ErrorOutOfBounds:
		return "out-of-bounds"
	case ErrorUnknownProtocol:
		return "unknown-protocol"
	}
	return "ErrorKind(" + strconv.Itoa(int(k)) + ")"
}

// Token returns the static marker token of the error kind.
// ErrorNone returns [token.Empty].
func (k ErrorKind) Token() token.Token {
	switch k {
	case ErrorMalformed:
		return token.MarkInvalidValue
	case ErrorOutOfBounds:
		return token.MarkOutOfBounds
	case ErrorUnknownProtocol:
		return token.ClassUnknown
	}
	return token.Empty
}
