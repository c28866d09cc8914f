package script

import (
	"fmt"
	"io"

	"github.com/roach88/vcdtrace/internal/vcd"
)

// Stats summarizes an applied script.
type Stats struct {
	Signals    int `json:"signals"`
	Steps      int `json:"steps"`
	Records    int `json:"records"`
	Suppressed int `json:"suppressed"`
}

// Apply declares the script's scopes and signals on w and replays its
// steps. It does not close w. The first failing step stops the replay;
// the error names the step.
func (s *Script) Apply(w *vcd.Writer) (Stats, error) {
	var stats Stats

	for i, sc := range s.Scopes {
		kind, err := vcd.ParseScopeType(sc.Type)
		if err != nil {
			return stats, fmt.Errorf("scopes[%d]: %w", i, err)
		}
		if err := w.SetScopeType(sc.Path, kind); err != nil {
			return stats, fmt.Errorf("scopes[%d]: %w", i, err)
		}
	}

	for i, sig := range s.Signals {
		typ, err := vcd.ParseVariableType(sig.Type)
		if err != nil {
			return stats, fmt.Errorf("signals[%d]: %w", i, err)
		}
		var opts []vcd.RegisterOption
		if sig.AllowDuplicate {
			opts = append(opts, vcd.AllowDuplicate())
		}
		if _, err := w.Register(sig.Scope, sig.Name, typ, sig.Size, sig.Init, opts...); err != nil {
			return stats, fmt.Errorf("signals[%d]: %w", i, err)
		}
		stats.Signals++
	}

	for i, step := range s.Steps {
		if err := applyStep(w, step); err != nil {
			return stats, fmt.Errorf("steps[%d]: %w", i, err)
		}
		stats.Steps++
	}

	ws := w.Stats()
	stats.Records, stats.Suppressed = ws.Records, ws.Suppressed
	return stats, nil
}

func applyStep(w *vcd.Writer, step Step) error {
	switch step.Dump {
	case "":
		_, err := w.Change(step.Scope, step.Name, step.At, step.Value)
		return err
	case DumpOn:
		return w.DumpOn(step.At)
	case DumpOff:
		return w.DumpOff(step.At)
	}
	return fmt.Errorf("unknown dump action %q", step.Dump)
}

// Render writes the script as a complete VCD stream to out. Extra options
// are applied after the script's own.
func (s *Script) Render(out io.Writer, extra ...vcd.Option) (Stats, error) {
	opts, err := s.WriterOptions()
	if err != nil {
		return Stats{}, err
	}
	w, err := vcd.New(out, append(opts, extra...)...)
	if err != nil {
		return Stats{}, err
	}

	stats, err := s.Apply(w)
	if err != nil {
		w.Close()
		return stats, err
	}

	if s.End != nil {
		err = w.CloseAt(*s.End)
	} else {
		err = w.Close()
	}
	ws := w.Stats()
	stats.Records, stats.Suppressed = ws.Records, ws.Suppressed
	return stats, err
}
