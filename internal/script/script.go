package script

import (
	"fmt"

	"github.com/roach88/vcdtrace/internal/vcd"
)

// Script describes a complete trace: header, writer options, declared
// signals and the time-ordered steps applied to them.
type Script struct {
	// Name identifies the trace.
	Name string `yaml:"name" json:"name"`

	// Description explains what the trace shows.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Header  Header  `yaml:"header,omitempty" json:"header,omitempty"`
	Options Options `yaml:"options,omitempty" json:"options,omitempty"`

	// Scopes overrides the kind of individual scopes.
	Scopes []ScopeDecl `yaml:"scopes,omitempty" json:"scopes,omitempty"`

	// Signals are registered in order; their position fixes their identifier.
	Signals []Signal `yaml:"signals" json:"signals"`

	// Steps are applied in order and must not go back in time.
	Steps []Step `yaml:"steps,omitempty" json:"steps,omitempty"`

	// End, when set, is the timestamp at which the trace is closed.
	End *uint64 `yaml:"end,omitempty" json:"end,omitempty"`
}

// Header is the textual form of vcd.Header.
type Header struct {
	Timescale string `yaml:"timescale,omitempty" json:"timescale,omitempty"` // "10 ns"; default "1 us"
	Date      string `yaml:"date,omitempty" json:"date,omitempty"`
	Comment   string `yaml:"comment,omitempty" json:"comment,omitempty"`
	Version   string `yaml:"version,omitempty" json:"version,omitempty"`
}

// Options maps onto the writer's construction options.
type Options struct {
	InitTimestamp uint64 `yaml:"init_timestamp,omitempty" json:"init_timestamp,omitempty"`
	Separator     string `yaml:"separator,omitempty" json:"separator,omitempty"`
	ScopeType     string `yaml:"scope_type,omitempty" json:"scope_type,omitempty"`
	Dumping       *bool  `yaml:"dumping,omitempty" json:"dumping,omitempty"`
}

// ScopeDecl sets the kind of one scope.
type ScopeDecl struct {
	Path string `yaml:"path" json:"path"`
	Type string `yaml:"type" json:"type"`
}

// Signal declares one variable.
type Signal struct {
	Scope          string `yaml:"scope" json:"scope"`
	Name           string `yaml:"name" json:"name"`
	Type           string `yaml:"type" json:"type"`
	Size           uint   `yaml:"size,omitempty" json:"size,omitempty"`
	Init           string `yaml:"init,omitempty" json:"init,omitempty"`
	AllowDuplicate bool   `yaml:"allow_duplicate,omitempty" json:"allow_duplicate,omitempty"`
}

// Step is either a value change (Scope, Name, Value) or a dump toggle
// (Dump "on" or "off") at timestamp At.
type Step struct {
	At    uint64 `yaml:"at" json:"at"`
	Scope string `yaml:"scope,omitempty" json:"scope,omitempty"`
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
	Dump  string `yaml:"dump,omitempty" json:"dump,omitempty"`
}

// Dump step values.
const (
	DumpOn  = "on"
	DumpOff = "off"
)

// IsDump reports whether the step toggles dumping.
func (s Step) IsDump() bool { return s.Dump != "" }

// Validate checks the script's structure. Values are checked by the
// writer when the script is applied.
func (s *Script) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Signals) == 0 {
		return fmt.Errorf("signals list is required and must be non-empty")
	}

	if _, err := s.header(); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	if s.Options.ScopeType != "" {
		if _, err := vcd.ParseScopeType(s.Options.ScopeType); err != nil {
			return fmt.Errorf("options.scope_type: %w", err)
		}
	}

	for i, sc := range s.Scopes {
		if sc.Path == "" {
			return fmt.Errorf("scopes[%d]: path is required", i)
		}
		if _, err := vcd.ParseScopeType(sc.Type); err != nil {
			return fmt.Errorf("scopes[%d]: %w", i, err)
		}
	}

	for i, sig := range s.Signals {
		if sig.Scope == "" || sig.Name == "" {
			return fmt.Errorf("signals[%d]: scope and name are required", i)
		}
		if _, err := vcd.ParseVariableType(sig.Type); err != nil {
			return fmt.Errorf("signals[%d]: %w", i, err)
		}
	}

	last := s.Options.InitTimestamp
	for i, step := range s.Steps {
		if step.At < last {
			return fmt.Errorf("steps[%d]: timestamp %d is before %d", i, step.At, last)
		}
		last = step.At

		switch {
		case step.IsDump():
			if step.Dump != DumpOn && step.Dump != DumpOff {
				return fmt.Errorf("steps[%d]: dump must be %q or %q, got %q", i, DumpOn, DumpOff, step.Dump)
			}
			if step.Scope != "" || step.Name != "" || step.Value != "" {
				return fmt.Errorf("steps[%d]: a dump step cannot change a value", i)
			}
		case step.Scope == "" || step.Name == "":
			return fmt.Errorf("steps[%d]: scope and name are required", i)
		}
	}

	if s.End != nil && *s.End < last {
		return fmt.Errorf("end %d is before the last step at %d", *s.End, last)
	}
	return nil
}

func (s *Script) header() (*vcd.Header, error) {
	ts := vcd.DefaultTimescale
	if s.Header.Timescale != "" {
		var err error
		if ts, err = vcd.ParseTimescale(s.Header.Timescale); err != nil {
			return nil, err
		}
	}
	return vcd.NewHeader(
		vcd.WithTimescale(ts),
		vcd.WithDate(s.Header.Date),
		vcd.WithComment(s.Header.Comment),
		vcd.WithVersion(s.Header.Version),
	)
}

// WriterOptions translates the script's header and options into writer
// options. The header is always explicit, so rendering a script twice
// produces identical output.
func (s *Script) WriterOptions() ([]vcd.Option, error) {
	h, err := s.header()
	if err != nil {
		return nil, err
	}
	opts := []vcd.Option{
		vcd.WithHeader(h),
		vcd.WithInitialTimestamp(s.Options.InitTimestamp),
	}
	if s.Options.Separator != "" {
		opts = append(opts, vcd.WithScopeSeparator(s.Options.Separator))
	}
	if s.Options.ScopeType != "" {
		st, err := vcd.ParseScopeType(s.Options.ScopeType)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vcd.WithDefaultScopeType(st))
	}
	if s.Options.Dumping != nil {
		opts = append(opts, vcd.WithDumping(*s.Options.Dumping))
	}
	return opts, nil
}
