package vcd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DefaultScopeSeparator splits scope paths into nested scopes.
const DefaultScopeSeparator = "."

type phase int

const (
	phaseRegistering phase = iota
	phaseDumping
	phaseClosed
)

func (p phase) String() string {
	switch p {
	case phaseRegistering:
		return "registering"
	case phaseDumping:
		return "dumping"
	case phaseClosed:
		return "closed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Writer produces a VCD stream.
//
// A writer starts in the registration phase, where variables are declared.
// The first change at a timestamp past the initial one finalizes
// registration: the header, the declarations and the initial $dumpvars
// snapshot are written, and no further variables may be registered.
// Close ends the stream.
//
// Writer is not safe for concurrent use.
type Writer struct {
	out    *sink
	header *Header // nil once written
	logger *slog.Logger

	sep          string
	defaultScope ScopeType
	timestamp    uint64
	dumping      bool
	phase        phase

	// last time marker written, to avoid repeating "#t" for the same t
	marker    uint64
	hasMarker bool

	scopes   *scopeTree
	registry *registry
	tracker  *tracker
	stats    Stats
}

// Stats counts what a writer has done.
type Stats struct {
	Variables  int // registered variables
	Records    int // change records written after the initial snapshot
	Suppressed int // changes dropped because the value was unchanged
}

// Option configures a Writer.
type Option func(*Writer)

// WithHeader sets the header metadata. Without it the writer uses
// DefaultTimescale, the current date and DefaultVersion.
func WithHeader(h *Header) Option {
	return func(w *Writer) { w.header = h }
}

// WithInitialTimestamp sets the starting watermark.
func WithInitialTimestamp(ts uint64) Option {
	return func(w *Writer) { w.timestamp = ts }
}

// WithScopeSeparator sets the string that splits scope paths.
func WithScopeSeparator(sep string) Option {
	return func(w *Writer) { w.sep = sep }
}

// WithDefaultScopeType sets the kind given to scopes created implicitly.
func WithDefaultScopeType(t ScopeType) Option {
	return func(w *Writer) { w.defaultScope = t }
}

// WithDumping sets whether value changes are written from the start.
// When false, the initial snapshot is followed by a $dumpoff block.
func WithDumping(enabled bool) Option {
	return func(w *Writer) { w.dumping = enabled }
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// New creates a writer on out. The writer owns out: if it implements
// io.Closer it is closed by Close.
func New(out io.Writer, opts ...Option) (*Writer, error) {
	if out == nil {
		return nil, errors.New("vcd: nil output")
	}
	w := &Writer{
		sep:          DefaultScopeSeparator,
		defaultScope: Module,
		dumping:      true,
		registry:     newRegistry(),
		tracker:      newTracker(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.sep == "" {
		return nil, newError(ErrCodeInvalidType, "scope separator must not be empty")
	}
	if !w.defaultScope.valid() {
		return nil, newError(ErrCodeInvalidType, fmt.Sprintf("invalid default scope type %d", int(w.defaultScope)))
	}
	if w.header == nil {
		w.header = defaultHeader(time.Now())
	} else if err := w.header.validate(); err != nil {
		return nil, err
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.scopes = newScopeTree(w.sep)
	w.out = newSink(out)
	return w, nil
}

// Create opens path for writing and returns a writer that owns the file.
func Create(path string, opts ...Option) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create vcd file: %w", err)
	}
	w, err := New(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Register declares a variable and records its initial value at the
// current timestamp. An empty init, or "x", selects the type's default:
// all bits unknown for scalars and vectors, 0.0 for reals.
//
// Size may be zero for integer, realtime, real, string and event
// variables, which have default widths; every other type needs a size.
func (w *Writer) Register(scopePath, name string, typ VariableType, size uint, init string, opts ...RegisterOption) (*Variable, error) {
	var cfg registerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	switch w.phase {
	case phaseClosed:
		return nil, newVarError(ErrCodeClosed, scopePath, name, "cannot register after close")
	case phaseDumping:
		return nil, newVarError(ErrCodeRegistrationClosed, scopePath, name, "registration finished")
	}
	if scopePath == "" || name == "" {
		return nil, newVarError(ErrCodeEmptyName, scopePath, name, "empty scope or name")
	}
	scopePath, name = norm.NFC.String(scopePath), norm.NFC.String(name)

	kind, width, err := selectEncoder(typ, size)
	if err != nil {
		return nil, withVar(err, scopePath, name)
	}
	if !cfg.allowDuplicate {
		if _, ok := w.registry.lookup(scopePath, name); ok {
			return nil, newVarError(ErrCodeDuplicate, scopePath, name, "duplicate variable")
		}
	}

	// Events carry no steady state, so they are not part of the snapshot.
	var initEnc string
	if typ != Event {
		initEnc, err = encode(kind, width, defaultValue(kind, width, init))
		if err != nil {
			return nil, withVar(err, scopePath, name)
		}
	}

	si := w.scopes.ensure(scopePath, w.defaultScope)
	v := &Variable{
		typ:       typ,
		size:      width,
		name:      name,
		scope:     si,
		scopePath: scopePath,
		kind:      kind,
	}
	w.registry.add(v)
	w.scopes.at(si).vars = append(w.scopes.at(si).vars, v)
	if typ != Event {
		w.tracker.observe(v, initEnc)
	}
	w.stats.Variables++
	return v, nil
}

// RegisterOption adjusts a single Register call.
type RegisterOption func(*registerConfig)

type registerConfig struct {
	allowDuplicate bool
}

// AllowDuplicate skips the duplicate-name check. The new variable gets its
// own identifier and shadows the earlier one for Change and Var.
func AllowDuplicate() RegisterOption {
	return func(c *registerConfig) { c.allowDuplicate = true }
}

// SetScopeType sets the kind of a scope, declaring the scope if it does not
// exist yet. Only allowed while registering.
func (w *Writer) SetScopeType(scopePath string, kind ScopeType) error {
	switch w.phase {
	case phaseClosed:
		return newVarError(ErrCodeClosed, scopePath, "", "cannot set scope type after close")
	case phaseDumping:
		return newVarError(ErrCodeRegistrationClosed, scopePath, "", "registration finished")
	}
	if scopePath == "" {
		return newError(ErrCodeEmptyName, "empty scope")
	}
	if !kind.valid() {
		return newVarError(ErrCodeInvalidType, scopePath, "", fmt.Sprintf("invalid scope type %d", int(kind)))
	}
	scopePath = norm.NFC.String(scopePath)
	w.scopes.at(w.scopes.ensure(scopePath, kind)).kind = kind
	return nil
}

// Var returns the variable registered as name in scopePath.
func (w *Writer) Var(scopePath, name string) (*Variable, error) {
	v, ok := w.registry.lookup(norm.NFC.String(scopePath), norm.NFC.String(name))
	if !ok {
		return nil, newVarError(ErrCodeUnknownVariable, scopePath, name, "variable does not exist")
	}
	return v, nil
}

// Change records value for a variable at timestamp and reports whether the
// value differed from the last one recorded. An unchanged value writes
// nothing.
//
// A timestamp past the current one advances the watermark, finalizing
// registration on the first advance. Timestamps must never go backwards.
func (w *Writer) Change(scopePath, name string, timestamp uint64, value string) (bool, error) {
	if w.phase == phaseClosed {
		return false, newVarError(ErrCodeClosed, scopePath, name, "cannot change value after close")
	}
	v, err := w.Var(scopePath, name)
	if err != nil {
		return false, err
	}
	if timestamp < w.timestamp {
		return false, newVarError(ErrCodeOutOfOrder, scopePath, name,
			fmt.Sprintf("out of order value change at %d (current %d)", timestamp, w.timestamp))
	}
	enc, err := encode(v.kind, v.size, value)
	if err != nil {
		return false, withVar(err, scopePath, name)
	}

	w.advance(timestamp)

	// Every event trigger is a change; events are not tracked.
	if v.typ == Event {
		w.emit(v, enc)
		return true, w.out.err
	}
	if !w.tracker.observe(v, enc) {
		w.stats.Suppressed++
		return false, nil
	}
	w.emit(v, enc)
	return true, w.out.err
}

func (w *Writer) emit(v *Variable, enc string) {
	if w.dumping && w.phase == phaseDumping {
		w.out.printf("%s%x\n", enc, v.id)
		w.stats.Records++
	}
}

// DumpOff suspends dumping at timestamp. Every tracked variable except
// reals is shown as unknown until DumpOn. A no-op when already off.
func (w *Writer) DumpOff(timestamp uint64) error {
	if err := w.checkTime(timestamp); err != nil {
		return err
	}
	if !w.dumping {
		return nil
	}
	if w.phase == phaseRegistering && timestamp == w.timestamp {
		// Still at the start: the snapshot will carry the $dumpoff block.
		w.dumping = false
		return nil
	}

	w.advance(timestamp)
	w.writeTime(timestamp)
	w.out.printf("$dumpoff\n")
	w.tracker.writeUnknowns(w.out)
	w.out.printf("$end\n")
	w.dumping = false
	w.logger.Debug("dumping suspended", "timestamp", timestamp)
	return w.out.err
}

// DumpOn resumes dumping at timestamp, writing every tracked value.
// A no-op when already on.
func (w *Writer) DumpOn(timestamp uint64) error {
	if err := w.checkTime(timestamp); err != nil {
		return err
	}
	if w.dumping {
		return nil
	}
	if w.phase == phaseRegistering && timestamp == w.timestamp {
		w.dumping = true
		return nil
	}

	w.advance(timestamp)
	w.dumping = true
	w.writeTime(timestamp)
	w.out.printf("$dumpon\n")
	w.tracker.writeValues(w.out)
	w.out.printf("$end\n")
	w.logger.Debug("dumping resumed", "timestamp", timestamp)
	return w.out.err
}

// Flush writes buffered output to the underlying stream.
func (w *Writer) Flush() error {
	if w.phase == phaseClosed {
		return nil
	}
	if err := w.out.flush(); err != nil {
		return fmt.Errorf("flush vcd: %w", err)
	}
	return nil
}

// Close finalizes registration if it is still open, flushes and releases
// the output. Closing a closed writer does nothing.
func (w *Writer) Close() error {
	if w.phase == phaseClosed {
		return nil
	}
	if w.phase == phaseRegistering {
		w.finalize()
	}
	w.phase = phaseClosed
	w.logger.Debug("vcd writer closed", "timestamp", w.timestamp,
		"records", w.stats.Records, "suppressed", w.stats.Suppressed)
	if err := w.out.close(); err != nil {
		return fmt.Errorf("close vcd: %w", err)
	}
	return nil
}

// CloseAt advances the watermark to timestamp, so the trace visibly ends
// there, and closes the writer.
func (w *Writer) CloseAt(timestamp uint64) error {
	if w.phase == phaseClosed {
		return nil
	}
	if err := w.checkTime(timestamp); err != nil {
		return err
	}
	if timestamp > w.timestamp {
		if w.phase == phaseRegistering {
			w.finalize()
		}
		w.writeTime(timestamp)
		w.timestamp = timestamp
	}
	return w.Close()
}

// Timestamp returns the current watermark.
func (w *Writer) Timestamp() uint64 { return w.timestamp }

// Dumping reports whether value changes are currently written.
func (w *Writer) Dumping() bool { return w.dumping }

// Stats returns counters for the writer's activity so far.
func (w *Writer) Stats() Stats { return w.stats }

func (w *Writer) checkTime(timestamp uint64) error {
	if w.phase == phaseClosed {
		return newError(ErrCodeClosed, "writer is closed")
	}
	if timestamp < w.timestamp {
		return newError(ErrCodeOutOfOrder,
			fmt.Sprintf("out of order timestamp %d (current %d)", timestamp, w.timestamp))
	}
	return nil
}

// advance moves the watermark forward, finalizing registration on the
// first advance.
func (w *Writer) advance(timestamp uint64) {
	if timestamp <= w.timestamp {
		return
	}
	if w.phase == phaseRegistering {
		w.finalize()
	}
	if w.dumping {
		w.writeTime(timestamp)
	}
	w.timestamp = timestamp
}

func (w *Writer) writeTime(timestamp uint64) {
	if w.hasMarker && w.marker == timestamp {
		return
	}
	w.out.printf("#%d\n", timestamp)
	w.marker, w.hasMarker = timestamp, true
}

// finalize writes the header, the declarations and the initial snapshot.
// It runs once, on the transition out of the registration phase.
func (w *Writer) finalize() {
	for _, kw := range w.header.keywords() {
		w.out.printf("%s %s $end\n", kw[0], kw[1])
	}
	w.scopes.writeDeclarations(w.out)
	w.out.printf("$enddefinitions $end\n")

	if !w.tracker.empty() {
		w.writeTime(w.timestamp)
		w.out.printf("$dumpvars\n")
		w.tracker.writeValues(w.out)
		w.out.printf("$end\n")
		if !w.dumping {
			w.out.printf("$dumpoff\n")
			w.tracker.writeUnknowns(w.out)
			w.out.printf("$end\n")
		}
	}

	w.header = nil
	w.phase = phaseDumping
	w.logger.Debug("vcd registration finalized",
		"variables", w.registry.count(), "scopes", len(w.scopes.scopes), "timestamp", w.timestamp)
}

func withVar(err error, scopePath, name string) error {
	var e *Error
	if errors.As(err, &e) {
		e.Scope, e.Name = scopePath, name
	}
	return err
}
