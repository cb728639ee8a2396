package dataframe

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/censusml/pkg/errors"
)

const censusPath = "../testdata/census_sample.csv"

func loadCensus(t *testing.T, opts ...LoadOption) *Frame {
	t.Helper()
	f, err := ReadCSV(censusPath, opts...)
	require.NoError(t, err)
	return f
}

func column(t *testing.T, f *Frame, name string) []float64 {
	t.Helper()
	v, err := f.Column(name)
	require.NoError(t, err)
	return v
}

func TestReadCSV(t *testing.T) {
	f := loadCensus(t)

	rows, cols := f.Shape()
	assert.Equal(t, 20, rows)
	assert.Equal(t, 9, cols)
	assert.Equal(t, []string{"YEAR", "STATEFIP", "AGE", "SEX", "MARST", "RACE", "EDUC", "INCTOT", "HRSWORK"}, f.Names())
	for i, k := range f.Kinds() {
		assert.Equal(t, KindInt, k, f.Names()[i])
	}

	income := column(t, f, "INCTOT")
	assert.Equal(t, 52000.0, income[0])
	assert.True(t, math.IsNaN(income[5]), "empty field must read as missing")
}

func TestReadCSV_Options(t *testing.T) {
	f := loadCensus(t,
		WithColumns("INCTOT", "AGE", "SEX"),
		WithKinds(map[string]Kind{"SEX": KindCategory, "AGE": KindFloat}),
		WithMaxRows(5),
	)

	rows, cols := f.Shape()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, []string{"INCTOT", "AGE", "SEX"}, f.Names())
	assert.Equal(t, []Kind{KindInt, KindFloat, KindCategory}, f.Kinds())

	sex, err := f.Strings("SEX")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "1", "2", "2"}, sex)
}

func TestReadCSVFrom_Delimiter(t *testing.T) {
	in := "a;b\n1;x\n2;\n"
	f, err := ReadCSVFrom(strings.NewReader(in), WithDelimiter(';'))
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindInt, KindCategory}, f.Kinds())

	b, err := f.Strings("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", ""}, b)
}

func TestReadCSV_BoolColumnsBecomeInts(t *testing.T) {
	f, err := ReadCSVFrom(strings.NewReader("flag\ntrue\nfalse\n"))
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindInt}, f.Kinds())
	assert.Equal(t, []float64{1, 0}, column(t, f, "flag"))
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV("testdata/does-not-exist.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist.csv")

	_, err = ReadCSVFrom(strings.NewReader("a,b\n1,2\n3,4,5\n"))
	assert.Error(t, err, "ragged rows")

	_, err = ReadCSV(censusPath, WithColumns("AGE", "WAGE"))
	var cnf *errors.ColumnNotFoundError
	require.True(t, errors.As(err, &cnf))
	assert.Equal(t, "WAGE", cnf.Column)
}

func TestNew(t *testing.T) {
	f, err := New(IntCol("id", []int{1, 2}), CategoryCol("c", []string{"a", ""}))
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindInt, KindCategory}, f.Kinds())

	_, err = New(IntCol("id", []int{1, 2}), IntCol("x", []int{1}))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	_, err = New(IntCol("id", []int{1}), IntCol("id", []int{2}))
	assert.Error(t, err)

	_, err = New()
	assert.Error(t, err)
}

func TestSelectDrop(t *testing.T) {
	f := loadCensus(t)

	sel, err := f.Select("SEX", "AGE")
	require.NoError(t, err)
	assert.Equal(t, []string{"SEX", "AGE"}, sel.Names())
	assert.Equal(t, column(t, f, "AGE"), column(t, sel, "AGE"))

	dropped, err := f.Drop("YEAR", "STATEFIP")
	require.NoError(t, err)
	_, cols := dropped.Shape()
	assert.Equal(t, 7, cols)
	assert.False(t, dropped.Has("YEAR"))

	// the source frame is unchanged
	_, cols = f.Shape()
	assert.Equal(t, 9, cols)

	_, err = f.Select("AGE", "NOPE")
	var cnf *errors.ColumnNotFoundError
	require.True(t, errors.As(err, &cnf))
	assert.Contains(t, cnf.Available, "AGE")

	_, err = f.Drop("NOPE")
	assert.True(t, errors.As(err, &cnf))
}

func TestHeadTake(t *testing.T) {
	f := loadCensus(t)

	head := f.Head(3)
	assert.Equal(t, 3, head.Rows())
	assert.Equal(t, []float64{34, 29, 61}, column(t, head, "AGE"))
	assert.Equal(t, 20, f.Head(100).Rows())

	taken, err := f.Take([]int{4, 0, 4})
	require.NoError(t, err)
	assert.Equal(t, []float64{45, 34, 45}, column(t, taken, "AGE"))
	assert.Equal(t, []float64{91000, 52000, 91000}, column(t, taken, "INCTOT"))

	empty, err := f.Take(nil)
	require.NoError(t, err)
	rows, cols := empty.Shape()
	assert.Equal(t, 0, rows)
	assert.Equal(t, 9, cols)
	assert.Equal(t, f.Kinds(), empty.Kinds())

	_, err = f.Take([]int{20})
	assert.Error(t, err)
}

func TestRecords(t *testing.T) {
	f, err := New(
		FloatCol("x", []float64{1.5, math.NaN()}),
		CategoryCol("c", []string{"a", "b"}),
	)
	require.NoError(t, err)

	want := [][]string{{"x", "c"}, {"1.5", "a"}, {"", "b"}}
	if diff := cmp.Diff(want, f.Records()); diff != "" {
		t.Errorf("Records mismatch (-want +got):\n%s", diff)
	}
}

func TestColumnRejectsCategories(t *testing.T) {
	f, err := New(CategoryCol("c", []string{"a"}), FloatCol("x", []float64{1}))
	require.NoError(t, err)
	_, err = f.Column("c")
	var tc *errors.TypeCastError
	require.True(t, errors.As(err, &tc))
	assert.Equal(t, "a", tc.Value)

	empty, err := f.Take(nil)
	require.NoError(t, err)
	require.NotPanics(t, func() { _, err = empty.Column("c") })
	require.True(t, errors.As(err, &tc))
	assert.Equal(t, "c", tc.Column)
	assert.Empty(t, tc.Value)

	xs, err := empty.Column("x")
	require.NoError(t, err)
	assert.Empty(t, xs)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"int", KindInt, false},
		{"Float", KindFloat, false},
		{" category ", KindCategory, false},
		{"string", KindCategory, false},
		{"bool", KindInt, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) Kind {
	t.Helper()
	k, err := ParseKind(s)
	require.NoError(t, err)
	return k
}
