package vcd

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// 4-state values.
const (
	Zero    = '0'
	One     = '1'
	Unknown = 'x'
	HighZ   = 'z'
)

// encoderKind selects how a variable's values are validated and formatted.
type encoderKind int

const (
	scalarEncoder encoderKind = iota
	vectorEncoder
	realEncoder
	stringEncoder
)

func (k encoderKind) String() string {
	switch k {
	case scalarEncoder:
		return "scalar"
	case vectorEncoder:
		return "vector"
	case realEncoder:
		return "real"
	case stringEncoder:
		return "string"
	}
	return fmt.Sprintf("encoderKind(%d)", int(k))
}

const defaultVectorSize = 64

// selectEncoder applies the type policy: it picks the encoder and the
// effective width for a declared type and requested size.
//
//	integer, realtime  size 1 -> scalar, otherwise vector (default 64)
//	event              scalar, width 1
//	real               real, width size or 64
//	string             string, width size or 1
//	everything else    vector, size required
func selectEncoder(typ VariableType, size uint) (encoderKind, uint, error) {
	orDefault := func(def uint) uint {
		if size == 0 {
			return def
		}
		return size
	}

	switch typ {
	case Integer, Realtime:
		if orDefault(defaultVectorSize) == 1 {
			return scalarEncoder, 1, nil
		}
		return vectorEncoder, orDefault(defaultVectorSize), nil
	case Event:
		return scalarEncoder, 1, nil
	case Real:
		return realEncoder, orDefault(defaultVectorSize), nil
	case String:
		return stringEncoder, orDefault(1), nil
	}

	if !typ.valid() {
		return 0, 0, newError(ErrCodeInvalidType, fmt.Sprintf("unknown variable type %d", int(typ)))
	}
	if size == 0 {
		return 0, 0, newError(ErrCodeMissingSize, fmt.Sprintf("must supply size for type %q", typ))
	}
	return vectorEncoder, size, nil
}

// defaultValue maps an empty or unknown initial value to the encoder's
// starting state.
func defaultValue(kind encoderKind, width uint, init string) string {
	unknown := init == "" || init == string(Unknown) || init == "X"
	switch kind {
	case realEncoder:
		if unknown {
			return "0.0"
		}
	case vectorEncoder:
		if unknown {
			return strings.Repeat(string(Unknown), int(width))
		}
	case scalarEncoder:
		if init == "" {
			return string(Unknown)
		}
	}
	return init
}

// encode validates raw and formats it as a change-record value.
func encode(kind encoderKind, width uint, raw string) (string, error) {
	switch kind {
	case scalarEncoder:
		return encodeScalar(raw)
	case vectorEncoder:
		return encodeVector(width, raw)
	case realEncoder:
		return encodeReal(raw)
	case stringEncoder:
		return encodeString(raw)
	}
	return "", newError(ErrCodeInvalidType, fmt.Sprintf("no encoder for %s", kind))
}

func encodeScalar(raw string) (string, error) {
	if raw == "" {
		return string(Unknown), nil
	}
	if len(raw) != 1 {
		return "", newError(ErrCodeInvalidValue, fmt.Sprintf("invalid scalar value %q", raw))
	}
	c := lower(raw[0])
	if !isState(c) {
		return "", newError(ErrCodeInvalidValue, fmt.Sprintf("invalid scalar value %q", raw))
	}
	return string(c), nil
}

// encodeVector right-aligns raw within width, filling with zeros on the
// left: "xx" at width 4 becomes "b00xx ".
func encodeVector(width uint, raw string) (string, error) {
	if uint(len(raw)) > width {
		return "", newError(ErrCodeInvalidValue, fmt.Sprintf("invalid binary vector value %q for size %d", raw, width))
	}
	if raw == "" {
		raw = strings.Repeat(string(Unknown), int(width))
	}

	var b strings.Builder
	b.Grow(int(width) + 2)
	b.WriteByte('b')
	for i := uint(len(raw)); i < width; i++ {
		b.WriteByte(Zero)
	}
	for i := 0; i < len(raw); i++ {
		c := lower(raw[i])
		if !isState(c) {
			return "", newError(ErrCodeInvalidValue, fmt.Sprintf("invalid binary vector value %q for size %d", raw, width))
		}
		b.WriteByte(c)
	}
	b.WriteByte(' ')
	return b.String(), nil
}

func encodeReal(raw string) (string, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", newError(ErrCodeInvalidValue, fmt.Sprintf("invalid real value %q", raw))
	}
	return "r" + strconv.FormatFloat(f, 'g', 16, 64) + " ", nil
}

func encodeString(raw string) (string, error) {
	if strings.ContainsRune(raw, ' ') {
		return "", newError(ErrCodeInvalidValue, fmt.Sprintf("invalid string value %q", raw))
	}
	return "s" + raw + " ", nil
}

// unknownRecord is the value a variable shows while dumping is off.
// Reals have no unknown state and report false.
func unknownRecord(kind encoderKind) (string, bool) {
	switch kind {
	case realEncoder:
		return "", false
	case vectorEncoder:
		return "bx ", true
	}
	return string(Unknown), true
}

func isState(c byte) bool {
	return c == Zero || c == One || c == Unknown || c == HighZ
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
