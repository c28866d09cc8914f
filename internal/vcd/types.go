package vcd

import (
	"fmt"
	"strings"
)

// VariableType is the VCD semantic type of a variable.
type VariableType int

const (
	Wire VariableType = iota
	Reg
	String // GTKWave extension
	Parameter
	Integer
	Real
	Realtime
	Time
	Event
	Supply0
	Supply1
	Tri
	Triand
	Trior
	Trireg
	Tri0
	Tri1
	Wand
	Wor
	Uwire
	variableTypeCount
)

var variableTypeNames = [variableTypeCount]string{
	"wire", "reg", "string", "parameter", "integer", "real", "realtime", "time", "event",
	"supply0", "supply1", "tri", "triand", "trior", "trireg", "tri0", "tri1", "wand", "wor", "uwire",
}

func (t VariableType) String() string {
	if !t.valid() {
		return fmt.Sprintf("VariableType(%d)", int(t))
	}
	return variableTypeNames[t]
}

func (t VariableType) valid() bool {
	return t >= 0 && t < variableTypeCount
}

// ParseVariableType resolves a lower-case VCD type keyword.
func ParseVariableType(s string) (VariableType, error) {
	for i, name := range variableTypeNames {
		if name == s {
			return VariableType(i), nil
		}
	}
	return 0, newError(ErrCodeInvalidType, fmt.Sprintf("unknown variable type %q", s))
}

// ScopeType is the kind keyword written in a $scope declaration.
type ScopeType int

const (
	Begin ScopeType = iota
	Fork
	Function
	Module
	Task
	scopeTypeCount
)

var scopeTypeNames = [scopeTypeCount]string{"begin", "fork", "function", "module", "task"}

func (t ScopeType) String() string {
	if !t.valid() {
		return fmt.Sprintf("ScopeType(%d)", int(t))
	}
	return scopeTypeNames[t]
}

func (t ScopeType) valid() bool {
	return t >= 0 && t < scopeTypeCount
}

// ParseScopeType resolves a scope kind keyword.
func ParseScopeType(s string) (ScopeType, error) {
	for i, name := range scopeTypeNames {
		if name == s {
			return ScopeType(i), nil
		}
	}
	return 0, newError(ErrCodeInvalidType, fmt.Sprintf("unknown scope type %q", s))
}

// TimeUnit is the unit part of a $timescale declaration.
type TimeUnit int

const (
	Second TimeUnit = iota
	Millisecond
	Microsecond
	Nanosecond
	Picosecond
	Femtosecond
	timeUnitCount
)

var timeUnitNames = [timeUnitCount]string{"s", "ms", "us", "ns", "ps", "fs"}

func (u TimeUnit) String() string {
	if u < 0 || u >= timeUnitCount {
		return fmt.Sprintf("TimeUnit(%d)", int(u))
	}
	return timeUnitNames[u]
}

// Timescale is the magnitude of one time step: 1, 10 or 100 units.
type Timescale struct {
	Quantity int
	Unit     TimeUnit
}

// DefaultTimescale is 1 us.
var DefaultTimescale = Timescale{Quantity: 1, Unit: Microsecond}

func (ts Timescale) String() string {
	return fmt.Sprintf("%d %s", ts.Quantity, ts.Unit)
}

func (ts Timescale) validate() error {
	switch ts.Quantity {
	case 1, 10, 100:
	default:
		return newError(ErrCodeInvalidHeader, fmt.Sprintf("invalid timescale quantity %d", ts.Quantity))
	}
	if ts.Unit < 0 || ts.Unit >= timeUnitCount {
		return newError(ErrCodeInvalidHeader, fmt.Sprintf("invalid timescale unit %d", int(ts.Unit)))
	}
	return nil
}

// ParseTimescale parses "10 ns" or "10ns".
func ParseTimescale(s string) (Timescale, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	var ts Timescale
	if _, err := fmt.Sscanf(s[:i], "%d", &ts.Quantity); err != nil {
		return Timescale{}, newError(ErrCodeInvalidHeader, fmt.Sprintf("invalid timescale %q", s))
	}
	unit := strings.TrimSpace(s[i:])
	found := false
	for u, name := range timeUnitNames {
		if name == unit {
			ts.Unit = TimeUnit(u)
			found = true
			break
		}
	}
	if !found {
		return Timescale{}, newError(ErrCodeInvalidHeader, fmt.Sprintf("invalid timescale unit %q", unit))
	}
	if err := ts.validate(); err != nil {
		return Timescale{}, err
	}
	return ts, nil
}
