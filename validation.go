package dissect

import (
	"errors"
	"fmt"
)

type ValidateFlags uint64

const (
	validateReserved ValidateFlags = 1 << iota
	// ValidateEvilBit reports IPv4 packets with the RFC3514 evil bit set.
	ValidateEvilBit
	// ValidateAllowMultiErrors accumulates every error found instead of only the first.
	ValidateAllowMultiErrors
	// ValidateChecksums makes decoders verify checksums and report [ErrBadCRC].
	ValidateChecksums
)

func (vf ValidateFlags) has(v ValidateFlags) bool {
	return vf&v == v
}

// Validator accumulates structural errors found by a decoder while reading a
// header. Decoders call ValidateSize-style methods on their wire frames and
// then mark the [Layer] as malformed with [Validator.ErrPop].
type Validator struct {
	accum       []error
	accumBitpos []BitPosErr
	flags       ValidateFlags
}

// NewValidator returns a Validator configured with flags.
func NewValidator(flags ValidateFlags) *Validator {
	return &Validator{flags: flags &^ validateReserved}
}

func (v *Validator) Flags() ValidateFlags {
	return v.flags
}

// Has reports whether all flags in f are set.
func (v *Validator) Has(f ValidateFlags) bool { return v.flags.has(f) }

func (v *Validator) ResetErr() {
	v.accum = v.accum[:0]
	v.accumBitpos = v.accumBitpos[:0]
}

func (v *Validator) HasError() bool {
	if v.flags.has(validateReserved) {
		panic("reserved bit set")
	}
	return len(v.accum) != 0
}

func (v *Validator) Err() error {
	if len(v.accum) == 1 {
		return v.accum[0]
	} else if len(v.accum) == 0 {
		return nil
	}
	return errors.Join(v.accum...)
}

// ErrPop returns the accumulated error and resets the validator.
// The returned error does not reference validator memory.
func (v *Validator) ErrPop() error {
	var err error
	switch len(v.accum) {
	case 0:
	case 1:
		err = detachErr(v.accum[0])
	default:
		errs := make([]error, len(v.accum))
		for i := range v.accum {
			errs[i] = detachErr(v.accum[i])
		}
		err = errors.Join(errs...)
	}
	v.ResetErr()
	return err
}

func detachErr(err error) error {
	if bpe, ok := err.(*BitPosErr); ok {
		cp := *bpe
		return &cp
	}
	return err
}

func (v *Validator) AddError(err error) {
	if err == nil {
		panic("error argument to AddError cannot be nil")
	} else if len(v.accum) != 0 && !v.flags.has(ValidateAllowMultiErrors) {
		return
	}
	v.accum = append(v.accum, err)
}

func (v *Validator) AddBitPosErr(bitStart, bitLen int, err error) {
	if err == nil {
		panic("err argument to bitPosErr cannot be nil")
	} else if bitLen <= 0 {
		panic("bitLen must be positive")
	} else if len(v.accum) != 0 && !v.flags.has(ValidateAllowMultiErrors) {
		return
	}
	v.accumBitpos = append(v.accumBitpos, BitPosErr{BitStart: bitStart, BitLen: bitLen, Err: err})
	v.accum = append(v.accum, &v.accumBitpos[len(v.accumBitpos)-1])
}

// BitPosErr is an error located at a bit range of a header.
type BitPosErr struct {
	BitStart int
	BitLen   int
	Err      error
}

func (bpe *BitPosErr) Error() string {
	return fmt.Sprintf("%s at bits %d..%d", bpe.Err.Error(), bpe.BitStart, bpe.BitStart+bpe.BitLen)
}

func (bpe *BitPosErr) Unwrap() error { return bpe.Err }
