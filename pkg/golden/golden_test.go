package golden

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bf16lut/pkg/bf16"
	"bf16lut/pkg/common"
	"bf16lut/pkg/core/generator"
	"bf16lut/pkg/core/partition"
)

func identityTable() *generator.Table {
	return &generator.Table{
		Function: "exp2",
		Policy:   partition.Geometric,
		Interval: common.Interval{Start: 1, End: 2},
		Entries: []common.Entry{
			{Index: 0, DomainStart: 1, DomainEnd: 1.5, Slope: 1, Intercept: 0},
			{Index: 1, DomainStart: 1.5, DomainEnd: 2, Slope: 1, Intercept: 0},
		},
	}
}

func TestReplayIdentity(t *testing.T) {
	var buf bytes.Buffer
	n, err := Replay(&buf, identityTable())
	require.NoError(t, err)
	// 1.0 (0x3F80) through 2.0 (0x4000)
	assert.Equal(t, 129, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, n)
	assert.Equal(t, "3F80 3F80", lines[0])
	assert.Equal(t, "4000 4000", lines[n-1])

	_, err = Replay(&buf, &generator.Table{})
	assert.Error(t, err)
}

func TestReplayAnalyzeRoundTrip(t *testing.T) {
	gen := generator.New(generator.Options{})
	table, err := gen.Generate(common.Interval{Start: 0.25, End: 0.5}, 8, partition.Geometric)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := Replay(&buf, table)
	require.NoError(t, err)

	pairs, st, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, n, len(pairs))
	assert.Equal(t, 0, st.ParseErrors)

	rep := Analyze(pairs, math.Exp2)
	assert.Equal(t, n, rep.Count)
	assert.Equal(t, n, rep.Valid)
	assert.Less(t, rep.MaxUlp, 3.0)
	assert.LessOrEqual(t, rep.MeanUlp, rep.MaxUlp)
}

func TestRead(t *testing.T) {
	in := strings.Join([]string{
		"// header",
		"# comment",
		"",
		"3F80 3F81",
		"zz 3F80",
		"4000",
		"  4000 4000 1.0000  ",
	}, "\n")

	pairs, st, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, ReadStats{Lines: 7, Skipped: 3, ParseErrors: 2}, st)
	assert.Equal(t, 1.0, pairs[0].X())
	assert.Equal(t, 1.0078125, pairs[0].Y())
	assert.Equal(t, bf16.BF16(0x4000), pairs[1].Out)
}

func TestUlpError(t *testing.T) {
	assert.Equal(t, 1.0, UlpError(1, 1.0078125))
	assert.Equal(t, 0.0, UlpError(2, 2))
	assert.True(t, math.IsNaN(UlpError(math.NaN(), 1)))
	assert.True(t, math.IsNaN(UlpError(1, math.NaN())))
	assert.True(t, math.IsInf(UlpError(1, math.Inf(1)), 1))
	assert.Equal(t, 0.0, UlpError(math.Inf(1), math.Inf(1)))
	assert.True(t, math.IsInf(UlpError(math.Inf(1), 3), 1))
}

func TestFinite(t *testing.T) {
	pairs := []Pair{
		{In: 0x3F80, Out: 0x3F80},
		{In: 0x7F80, Out: 0x3F80},
		{In: 0x3F80, Out: 0x7FC0},
	}
	assert.Len(t, Finite(pairs), 1)
}

func TestWriteAnnotated(t *testing.T) {
	pairs := []Pair{
		{In: 0x3F80, Out: 0x3F81},
		{In: 0x3F80, Out: 0x7FC0},
		{In: 0x3F80, Out: 0x7F80},
		{In: 0x4000, Out: 0x4000},
	}
	identity := func(x float64) float64 { return x }

	var buf bytes.Buffer
	rep, err := WriteAnnotated(&buf, pairs, identity)
	require.NoError(t, err)
	assert.Equal(t, "3F80 3F81 1.0000\n3F80 7FC0 NaN\n3F80 7F80 Inf\n4000 4000 0.0000\n", buf.String())

	assert.Equal(t, 4, rep.Count)
	assert.Equal(t, 2, rep.Valid)
	assert.Equal(t, 1.0, rep.MaxUlp)
	assert.Equal(t, bf16.BF16(0x3F80), rep.MaxInput)
	assert.Equal(t, 0.5, rep.MeanUlp)
	assert.Equal(t, rep, Analyze(pairs, identity))
}

func TestExportSorted(t *testing.T) {
	pairs := []Pair{
		{In: 0x4000, Out: 0x4080},
		{In: 0xBF80, Out: 0x3F00},
		{In: 0x7FC0, Out: 0x7FC0},
		{In: 0x0000, Out: 0x3F80},
	}
	var buf bytes.Buffer
	n, err := ExportSorted(&buf, pairs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "x,y\n-1,0.5\n0,1\n2,4\n", buf.String())
}

func TestReplayPrecision(t *testing.T) {
	// a*x is 1 + 2^-7 + 2^-23 + 2^-30 at x = 1.0078125. Binary32 drops the
	// 2^-30 term before the add, binary64 keeps it.
	table := &generator.Table{
		Function: "exp2",
		Policy:   partition.Geometric,
		Interval: common.Interval{Start: 1, End: 1.0078125},
		Entries: []common.Entry{
			{Index: 0, DomainStart: 1, DomainEnd: 1.0078125, Slope: 1 + math.Ldexp(1, -23), Intercept: -1.0078125},
		},
	}

	var single, double bytes.Buffer
	n, err := ReplayWith(&single, table, Binary32)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = ReplayWith(&double, table, Binary64)
	require.NoError(t, err)

	assert.Equal(t, "3F81 3400", strings.Split(strings.TrimSpace(single.String()), "\n")[1])
	assert.Equal(t, "3F81 3401", strings.Split(strings.TrimSpace(double.String()), "\n")[1])

	var def bytes.Buffer
	_, err = Replay(&def, table)
	require.NoError(t, err)
	assert.Equal(t, single.String(), def.String())
}

func TestParsePrecision(t *testing.T) {
	for in, want := range map[string]Precision{"": Binary32, "float": Binary32, "double": Binary64, "Binary64": Binary64} {
		got, err := ParsePrecision(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePrecision("half")
	assert.Error(t, err)
	assert.Equal(t, "binary64", Binary64.String())
}
