package vcd

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vcdtrace/internal/testutil"
)

// newTestWriter builds a writer whose header is only "$timescale 1 ns".
func newTestWriter(t *testing.T, buf *bytes.Buffer, opts ...Option) *Writer {
	t.Helper()
	h, err := NewHeader(WithTimescale(Timescale{Quantity: 1, Unit: Nanosecond}))
	require.NoError(t, err)
	all := append([]Option{WithHeader(h), WithLogger(testutil.QuietLogger())}, opts...)
	w, err := New(buf, all...)
	require.NoError(t, err)
	return w
}

func mustChange(t *testing.T, w *Writer, scope, name string, ts uint64, value string) bool {
	t.Helper()
	changed, err := w.Change(scope, name, ts, value)
	require.NoError(t, err)
	return changed
}

func TestWriterGoldenBasic(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHeader(
		WithTimescale(Timescale{Quantity: 10, Unit: Nanosecond}),
		WithComment("unit\ntest"),
		WithVersion("vcdtrace-test"),
	)
	require.NoError(t, err)
	w, err := New(&buf, WithHeader(h), WithLogger(testutil.QuietLogger()))
	require.NoError(t, err)

	_, err = w.Register("top", "clk", Wire, 1, "0")
	require.NoError(t, err)
	_, err = w.Register("top.cpu", "pc", Reg, 8, "")
	require.NoError(t, err)
	_, err = w.Register("top.cpu", "valid", Integer, 1, "1")
	require.NoError(t, err)
	_, err = w.Register("top", "temp", Real, 0, "")
	require.NoError(t, err)
	_, err = w.Register("top.mem", "state", String, 0, "idle")
	require.NoError(t, err)
	_, err = w.Register("top", "trig", Event, 0, "")
	require.NoError(t, err)
	require.NoError(t, w.SetScopeType("top.mem", Task))

	assert.True(t, mustChange(t, w, "top", "clk", 10, "1"))
	assert.True(t, mustChange(t, w, "top.cpu", "pc", 10, "1010"))
	assert.True(t, mustChange(t, w, "top", "clk", 20, "0"))
	assert.False(t, mustChange(t, w, "top", "clk", 20, "0"))
	assert.True(t, mustChange(t, w, "top", "temp", 20, "3.25"))
	assert.True(t, mustChange(t, w, "top.mem", "state", 30, "busy"))
	assert.True(t, mustChange(t, w, "top", "trig", 30, "1"))
	require.NoError(t, w.CloseAt(40))

	testutil.AssertGolden(t, "basic", buf.Bytes())

	stats := w.Stats()
	assert.Equal(t, 6, stats.Variables)
	assert.Equal(t, 6, stats.Records)
	assert.Equal(t, 1, stats.Suppressed)
}

func TestWriterGoldenDumpOff(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHeader(
		WithTimescale(Timescale{Quantity: 100, Unit: Picosecond}),
		WithDate("Tue Mar  5 09:30:00 2024"),
	)
	require.NoError(t, err)
	w, err := New(&buf,
		WithHeader(h),
		WithLogger(testutil.QuietLogger()),
		WithInitialTimestamp(5),
		WithDumping(false),
	)
	require.NoError(t, err)

	_, err = w.Register("a.b", "x", Wire, 4, "")
	require.NoError(t, err)
	_, err = w.Register("a", "r", Real, 0, "1.5")
	require.NoError(t, err)
	_, err = w.Register("a", "s", Integer, 1, "0")
	require.NoError(t, err)

	assert.True(t, mustChange(t, w, "a.b", "x", 10, "11"))
	require.NoError(t, w.DumpOn(20))
	assert.True(t, mustChange(t, w, "a", "s", 25, "1"))
	require.NoError(t, w.DumpOff(30))
	assert.True(t, mustChange(t, w, "a", "s", 35, "0"))
	require.NoError(t, w.Close())

	testutil.AssertGolden(t, "dumpoff", buf.Bytes())
}

func TestWriterNestedScopesAnyOrder(t *testing.T) {
	orders := [][]string{
		{"a", "a.b", "a.c"},
		{"a.c", "a.b", "a"},
		{"a.b", "a", "a.c"},
	}
	want := []string{
		"$scope module a $end",
		"$scope module b $end",
		"$upscope $end",
		"$scope module c $end",
		"$upscope $end",
		"$upscope $end",
	}

	for _, order := range orders {
		t.Run(strings.Join(order, ","), func(t *testing.T) {
			var buf bytes.Buffer
			w := newTestWriter(t, &buf)
			for _, sc := range order {
				_, err := w.Register(sc, "v", Wire, 1, "0")
				require.NoError(t, err)
			}
			require.NoError(t, w.Close())

			assert.Equal(t, want, scopeLines(buf.String()))
		})
	}
}

func TestWriterHeaderOnlyOnClose(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)
	require.NoError(t, w.Close())
	assert.Equal(t, "$timescale 1 ns $end\n$enddefinitions $end\n", buf.String())
}

func TestWriterCloseTwice(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)
	_, err := w.Register("top", "clk", Wire, 1, "0")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	first := buf.String()

	require.NoError(t, w.Close())
	require.NoError(t, w.CloseAt(100))
	assert.Equal(t, first, buf.String())
}

func TestWriterLogsLifecycle(t *testing.T) {
	var buf bytes.Buffer
	logger, logs := testutil.CaptureLogger()
	w := newTestWriter(t, &buf, WithLogger(logger))
	_, err := w.Register("top", "clk", Wire, 1, "0")
	require.NoError(t, err)

	require.NoError(t, w.DumpOff(10))
	require.NoError(t, w.CloseAt(20))

	out := logs.String()
	assert.Contains(t, out, `msg="vcd registration finalized" variables=1 scopes=1 timestamp=0`)
	assert.Contains(t, out, `msg="dumping suspended" timestamp=10`)
	assert.Contains(t, out, `msg="vcd writer closed" timestamp=20 records=0 suppressed=0`)
}

func TestWriterDuplicateRegistration(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)

	_, err := w.Register("top", "clk", Wire, 1, "0")
	require.NoError(t, err)

	_, err = w.Register("top", "clk", Wire, 1, "0")
	require.Error(t, err)
	assert.True(t, IsTypeError(err))
	assert.True(t, HasCode(err, ErrCodeDuplicate))
	assert.Equal(t, 1, w.Stats().Variables)

	// Same name in another scope is a different variable.
	_, err = w.Register("top.sub", "clk", Wire, 1, "0")
	require.NoError(t, err)
}

func TestWriterDuplicateAllowedShadows(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)

	first, err := w.Register("top", "clk", Wire, 1, "0")
	require.NoError(t, err)
	second, err := w.Register("top", "clk", Wire, 1, "1", AllowDuplicate())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())

	v, err := w.Var("top", "clk")
	require.NoError(t, err)
	assert.Same(t, second, v)

	require.NoError(t, w.Close())
	assert.Contains(t, buf.String(), "$var wire 1 0 clk $end\n$var wire 1 1 clk $end\n")
}

func TestWriterRejectedRegistrationLeavesNoTrace(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)

	_, err := w.Register("top", "bus", Wire, 2, "111")
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeInvalidValue))

	_, err = w.Var("top", "bus")
	assert.True(t, IsPhaseError(err))

	// The failed call neither consumed an id nor created the scope.
	v, err := w.Register("other", "ok", Wire, 1, "1")
	require.NoError(t, err)
	assert.Equal(t, uint(0), v.ID())
	require.NoError(t, w.Close())
	assert.NotContains(t, buf.String(), "top")
}

func TestWriterRegisterValidation(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)

	_, err := w.Register("", "clk", Wire, 1, "")
	assert.True(t, HasCode(err, ErrCodeEmptyName))

	_, err = w.Register("top", "", Wire, 1, "")
	assert.True(t, HasCode(err, ErrCodeEmptyName))

	_, err = w.Register("top", "bus", Wire, 0, "")
	assert.True(t, HasCode(err, ErrCodeMissingSize))
	assert.True(t, IsTypeError(err))

	_, err = w.Register("top", "t", Real, 0, "fast")
	assert.True(t, HasCode(err, ErrCodeInvalidValue))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "top", e.Scope)
	assert.Equal(t, "t", e.Name)
}

func TestWriterRegisterAfterFinalize(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)
	_, err := w.Register("top", "clk", Wire, 1, "0")
	require.NoError(t, err)
	mustChange(t, w, "top", "clk", 1, "1")

	_, err = w.Register("top", "late", Wire, 1, "0")
	assert.True(t, IsPhaseError(err))
	assert.True(t, HasCode(err, ErrCodeRegistrationClosed))

	assert.True(t, HasCode(w.SetScopeType("top", Task), ErrCodeRegistrationClosed))
}

func TestWriterAfterClose(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)
	_, err := w.Register("top", "clk", Wire, 1, "0")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.Register("top", "other", Wire, 1, "0")
	assert.True(t, HasCode(err, ErrCodeClosed))

	_, err = w.Change("top", "clk", 10, "1")
	assert.True(t, IsPhaseError(err))
	assert.True(t, HasCode(err, ErrCodeClosed))

	assert.True(t, HasCode(w.DumpOff(10), ErrCodeClosed))
	assert.True(t, HasCode(w.DumpOn(10), ErrCodeClosed))
}

func TestWriterOutOfOrder(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)
	_, err := w.Register("top", "a", Wire, 1, "0")
	require.NoError(t, err)
	_, err = w.Register("top", "b", Wire, 1, "0")
	require.NoError(t, err)

	mustChange(t, w, "top", "a", 10, "1")
	require.NoError(t, w.Flush())
	before := buf.Len()

	// Time is global: going backwards fails for every variable.
	for _, name := range []string{"a", "b"} {
		_, err = w.Change("top", name, 9, "0")
		require.Error(t, err)
		assert.True(t, IsPhaseError(err))
		assert.True(t, HasCode(err, ErrCodeOutOfOrder))
	}
	assert.True(t, HasCode(w.DumpOff(3), ErrCodeOutOfOrder))
	require.NoError(t, w.Flush())
	assert.Equal(t, before, buf.Len())

	// Same timestamp is still accepted.
	assert.True(t, mustChange(t, w, "top", "b", 10, "1"))
}

func TestWriterUnknownVariable(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)
	_, err := w.Change("top", "nope", 0, "1")
	require.Error(t, err)
	assert.True(t, IsPhaseError(err))
	assert.True(t, HasCode(err, ErrCodeUnknownVariable))
}

func TestWriterInvalidValueWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)
	_, err := w.Register("top", "clk", Integer, 1, "0")
	require.NoError(t, err)

	_, err = w.Change("top", "clk", 10, "q")
	require.Error(t, err)
	assert.True(t, IsTypeError(err))
	require.NoError(t, w.Flush())
	assert.Empty(t, buf.String())
	assert.Equal(t, uint64(0), w.Timestamp())

	// The writer stays usable.
	assert.True(t, mustChange(t, w, "top", "clk", 10, "1"))
}

func TestWriterUnchangedValueIsNoop(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)
	_, err := w.Register("top", "bus", Wire, 4, "0011")
	require.NoError(t, err)

	mustChange(t, w, "top", "bus", 1, "1111")
	require.NoError(t, w.Flush())
	before := buf.String()

	assert.False(t, mustChange(t, w, "top", "bus", 1, "1111"))
	require.NoError(t, w.Flush())
	assert.Equal(t, before, buf.String())
	assert.Equal(t, 1, w.Stats().Suppressed)
}

func TestWriterTimestampsOrdered(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)
	_, err := w.Register("top", "n", Integer, 8, "0")
	require.NoError(t, err)

	values := []string{"1", "10", "11", "100"}
	for i, v := range values {
		mustChange(t, w, "top", "n", uint64(i+1)*5, v)
	}
	require.NoError(t, w.Close())

	out := buf.String()
	last := -1
	for i := range values {
		idx := strings.Index(out, "#"+strconv.FormatUint(uint64(i+1)*5, 10)+"\n")
		require.NotEqual(t, -1, idx)
		assert.Greater(t, idx, last)
		last = idx
	}
	assert.Contains(t, out, "#20\nb00000100 0\n")
}

func TestWriterDumpOffDuringRegistration(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)
	_, err := w.Register("top", "q", Wire, 2, "01")
	require.NoError(t, err)

	require.NoError(t, w.DumpOff(0))
	assert.False(t, w.Dumping())
	assert.Empty(t, buf.String())

	mustChange(t, w, "top", "q", 4, "10")
	require.NoError(t, w.DumpOn(8))
	require.NoError(t, w.Close())

	assert.Equal(t, strings.Join([]string{
		"$timescale 1 ns $end",
		"$scope module top $end",
		"$var wire 2 0 q $end",
		"$upscope $end",
		"$enddefinitions $end",
		"#0",
		"$dumpvars",
		"b01 0",
		"$end",
		"$dumpoff",
		"bx 0",
		"$end",
		"#8",
		"$dumpon",
		"b10 0",
		"$end",
		"",
	}, "\n"), buf.String())
}

func TestWriterRedundantDumpCallsAreNoops(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)
	_, err := w.Register("top", "q", Wire, 1, "0")
	require.NoError(t, err)
	mustChange(t, w, "top", "q", 1, "1")

	require.NoError(t, w.DumpOn(2))
	require.NoError(t, w.DumpOff(3))
	require.NoError(t, w.Flush())
	before := buf.String()
	require.NoError(t, w.DumpOff(4))
	require.NoError(t, w.Flush())
	assert.Equal(t, before, buf.String())
	assert.Equal(t, 1, strings.Count(before, "$dumpoff"))
}

func TestWriterScopeSeparatorAndDefaultKind(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf, WithScopeSeparator("/"), WithDefaultScopeType(Task))
	_, err := w.Register("soc/core0", "pc", Wire, 4, "0")
	require.NoError(t, err)
	_, err = w.Register("soc/core1.x", "pc", Wire, 4, "0")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, []string{
		"$scope task soc $end",
		"$scope task core0 $end",
		"$upscope $end",
		"$scope task core1.x $end",
		"$upscope $end",
		"$upscope $end",
	}, scopeLines(buf.String()))
}

func TestWriterNamesAreNFCNormalized(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)

	// Precomposed U+00E9 versus "e" followed by a combining acute accent.
	_, err := w.Register("top", "caf\u00e9", Wire, 1, "0")
	require.NoError(t, err)

	_, err = w.Register("top", "cafe\u0301", Wire, 1, "0")
	assert.True(t, HasCode(err, ErrCodeDuplicate))

	changed, err := w.Change("top", "cafe\u0301", 1, "1")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestWriterEventIsNotSnapshotted(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)
	_, err := w.Register("top", "clk", Wire, 1, "0")
	require.NoError(t, err)
	_, err = w.Register("top", "ev", Event, 0, "")
	require.NoError(t, err)

	mustChange(t, w, "top", "ev", 3, "1")
	require.NoError(t, w.Close())
	assert.Contains(t, buf.String(), "$dumpvars\nb0 0\n$end\n#3\n11\n")
}

func TestWriterEventFiresEveryTimeAndIsNeverReplayed(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(t, &buf)
	_, err := w.Register("top", "clk", Wire, 1, "0")
	require.NoError(t, err)
	_, err = w.Register("top", "ev", Event, 0, "")
	require.NoError(t, err)

	assert.True(t, mustChange(t, w, "top", "ev", 3, "1"))
	require.NoError(t, w.DumpOff(5))
	require.NoError(t, w.DumpOn(7))
	assert.True(t, mustChange(t, w, "top", "ev", 9, "1"))
	assert.True(t, mustChange(t, w, "top", "ev", 11, "1"))
	require.NoError(t, w.Close())

	assert.Equal(t, ""+
		"$timescale 1 ns $end\n"+
		"$scope module top $end\n"+
		"$var wire 1 0 clk $end\n"+
		"$var event 1 1 ev $end\n"+
		"$upscope $end\n"+
		"$enddefinitions $end\n"+
		"#0\n"+
		"$dumpvars\n"+
		"b0 0\n"+
		"$end\n"+
		"#3\n"+
		"11\n"+
		"#5\n"+
		"$dumpoff\n"+
		"bx 0\n"+
		"$end\n"+
		"#7\n"+
		"$dumpon\n"+
		"b0 0\n"+
		"$end\n"+
		"#9\n"+
		"11\n"+
		"#11\n"+
		"11\n", buf.String())
	assert.Zero(t, w.Stats().Suppressed)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(&bytes.Buffer{}, WithScopeSeparator(""))
	assert.True(t, IsTypeError(err))

	_, err = New(&bytes.Buffer{}, WithDefaultScopeType(ScopeType(42)))
	assert.True(t, IsTypeError(err))

	_, err = New(&bytes.Buffer{}, WithHeader(&Header{}))
	assert.True(t, HasCode(err, ErrCodeInvalidHeader))
	assert.True(t, IsTypeError(err))

	_, err = New(&bytes.Buffer{}, WithHeader(&Header{timescale: DefaultTimescale, date: "yesterday"}))
	assert.True(t, HasCode(err, ErrCodeInvalidHeader))

	_, err = New(nil)
	assert.Error(t, err)
}

func TestWriterDefaultHeader(t *testing.T) {
	var buf bytes.Buffer
	w, err := New(&buf, WithLogger(testutil.QuietLogger()))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "$timescale 1 us $end\n$date "))
	assert.Contains(t, out, "$version vcdtrace $end\n")
}

func TestCreateOwnsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.vcd")
	h, err := NewHeader()
	require.NoError(t, err)
	w, err := Create(path, WithHeader(h), WithLogger(testutil.QuietLogger()))
	require.NoError(t, err)
	_, err = w.Register("top", "clk", Wire, 1, "1")
	require.NoError(t, err)
	require.NoError(t, w.CloseAt(7))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "$dumpvars\nb1 0\n$end\n#7\n"))
}

func TestCreateBadPath(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing", "out.vcd"))
	assert.Error(t, err)
}

func TestHeaderValidation(t *testing.T) {
	_, err := NewHeader(WithTimescale(Timescale{Quantity: 5, Unit: Nanosecond}))
	assert.True(t, HasCode(err, ErrCodeInvalidHeader))

	_, err = NewHeader(WithTimescale(Timescale{Quantity: 1, Unit: TimeUnit(17)}))
	assert.True(t, HasCode(err, ErrCodeInvalidHeader))

	_, err = NewHeader(WithDate("2024-03-05"))
	assert.True(t, HasCode(err, ErrCodeInvalidHeader))

	h, err := NewHeader(WithDate("Tue Mar  5 09:30:00 2024"))
	require.NoError(t, err)
	assert.Equal(t, DefaultTimescale, h.Timescale())
}

func TestParseTimescale(t *testing.T) {
	for in, want := range map[string]Timescale{
		"1 s":     {1, Second},
		"10ns":    {10, Nanosecond},
		" 100 fs": {100, Femtosecond},
		"1 us":    {1, Microsecond},
	} {
		got, err := ParseTimescale(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "ns", "3 ns", "10 minutes"} {
		_, err := ParseTimescale(bad)
		assert.True(t, HasCode(err, ErrCodeInvalidHeader), bad)
	}
}

func TestParseTypes(t *testing.T) {
	vt, err := ParseVariableType("trireg")
	require.NoError(t, err)
	assert.Equal(t, Trireg, vt)
	assert.Equal(t, "uwire", Uwire.String())

	_, err = ParseVariableType("logic")
	assert.True(t, IsTypeError(err))

	st, err := ParseScopeType("fork")
	require.NoError(t, err)
	assert.Equal(t, Fork, st)

	_, err = ParseScopeType("class")
	assert.True(t, IsTypeError(err))
}

// scopeLines keeps the $scope and $upscope lines of out.
func scopeLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "$scope") || strings.HasPrefix(line, "$upscope") {
			lines = append(lines, line)
		}
	}
	return lines
}
