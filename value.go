package dissect

import (
	"encoding/hex"
	"math"
	"strconv"
)

// Kind is the type tag of a [Value].
type Kind uint8

const (
	KindNone   Kind = iota // none
	KindInt                // int
	KindUint               // uint
	KindFloat              // float
	KindBool               // bool
	KindString             // string
	KindBytes              // bytes
	KindBuffer             // buffer
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindBuffer:
		return "buffer"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is the decoded value of an [Attr]. Numeric values are stored inline;
// KindBytes values reference packet memory through a [Slice] and KindBuffer
// values own a byte slice produced by the decoder (i.e. reassembled data).
type Value struct {
	kind Kind
	num  uint64
	rng  Slice
	obj  any // string or []byte
}

// NoValue returns a value of KindNone. It is used by marker attributes such as enum members.
func NoValue() Value { return Value{} }

func IntValue(v int64) Value     { return Value{kind: KindInt, num: uint64(v)} }
func UintValue(v uint64) Value   { return Value{kind: KindUint, num: v} }
func FloatValue(v float64) Value { return Value{kind: KindFloat, num: math.Float64bits(v)} }

func BoolValue(v bool) Value {
	var n uint64
	if v {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

func StringValue(v string) Value { return Value{kind: KindString, obj: v} }

// BytesValue returns a value referencing the bytes of s without copying them.
func BytesValue(s Slice) Value { return Value{kind: KindBytes, rng: s} }

// BufferValue returns a value that owns b. b must not be modified afterwards.
func BufferValue(b []byte) Value { return Value{kind: KindBuffer, obj: b} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Int() (int64, bool) { return int64(v.num), v.kind == KindInt }

func (v Value) Uint() (uint64, bool) { return v.num, v.kind == KindUint }

func (v Value) Float() (float64, bool) { return math.Float64frombits(v.num), v.kind == KindFloat }

func (v Value) Bool() (bool, bool) { return v.num != 0, v.kind == KindBool }

func (v Value) Str() (string, bool) {
	s, ok := v.obj.(string)
	return s, ok && v.kind == KindString
}

// Slice returns the referenced packet bytes of a KindBytes value.
func (v Value) Slice() (Slice, bool) { return v.rng, v.kind == KindBytes }

// Bytes returns the bytes of KindBytes and KindBuffer values.
func (v Value) Bytes() ([]byte, bool) {
	switch v.kind {
	case KindBytes:
		return v.rng.Bytes(), true
	case KindBuffer:
		b, _ := v.obj.([]byte)
		return b, true
	}
	return nil, false
}

// Equal reports whether v and w hold the same kind and contents. KindBytes
// values are compared by content, not by position.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindString:
		a, _ := v.Str()
		b, _ := w.Str()
		return a == b
	case KindBytes, KindBuffer:
		a, _ := v.Bytes()
		b, _ := w.Bytes()
		return string(a) == string(b)
	}
	return v.num == w.num
}

// AppendText appends a plain text representation of v to dst.
func (v Value) AppendText(dst []byte) []byte {
	switch v.kind {
	case KindNone:
		return dst
	case KindInt:
		return strconv.AppendInt(dst, int64(v.num), 10)
	case KindUint:
		return strconv.AppendUint(dst, v.num, 10)
	case KindFloat:
		return strconv.AppendFloat(dst, math.Float64frombits(v.num), 'g', -1, 64)
	case KindBool:
		return strconv.AppendBool(dst, v.num != 0)
	case KindString:
		s, _ := v.Str()
		return strconv.AppendQuote(dst, s)
	case KindBytes, KindBuffer:
		b, _ := v.Bytes()
		return hex.AppendEncode(dst, b)
	}
	return dst
}

func (v Value) String() string {
	return string(v.AppendText(nil))
}
