package dataframe

import (
	"bytes"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/YuminosukeSato/censusml/pkg/log"
)

func TestCast(t *testing.T) {
	f, err := New(
		FloatCol("f", []float64{1.7, -1.7, 3}),
		IntCol("i", []int{4, 5, 6}),
		CategoryCol("c", []string{"1.5", "2", ""}),
		CategoryCol("bad", []string{"1", "x", "3"}),
	)
	require.NoError(t, err)

	t.Run("float to int truncates toward zero", func(t *testing.T) {
		out, err := f.Cast("f", KindInt)
		require.NoError(t, err)
		k, _ := out.Kind("f")
		assert.Equal(t, KindInt, k)
		assert.Equal(t, []float64{1, -1, 3}, column(t, out, "f"))
		assert.Equal(t, f.Names(), out.Names(), "column keeps its position")
	})

	t.Run("int to category", func(t *testing.T) {
		out, err := f.Cast("i", KindCategory)
		require.NoError(t, err)
		vals, err := out.Strings("i")
		require.NoError(t, err)
		assert.Equal(t, []string{"4", "5", "6"}, vals)
	})

	t.Run("category to float keeps missing", func(t *testing.T) {
		out, err := f.Cast("c", KindFloat)
		require.NoError(t, err)
		vals := column(t, out, "c")
		assert.Equal(t, 1.5, vals[0])
		assert.Equal(t, 2.0, vals[1])
		assert.True(t, math.IsNaN(vals[2]))
	})

	t.Run("missing to int fails", func(t *testing.T) {
		_, err := f.Cast("c", KindInt)
		var tce *errors.TypeCastError
		require.True(t, errors.As(err, &tce))
		assert.Equal(t, 2, tce.Row)
		assert.Equal(t, "int", tce.To)
	})

	t.Run("non-numeric string fails", func(t *testing.T) {
		_, err := f.Cast("bad", KindFloat)
		var tce *errors.TypeCastError
		require.True(t, errors.As(err, &tce))
		assert.Equal(t, 1, tce.Row)
		assert.Equal(t, "x", tce.Value)
		assert.Equal(t, "category", tce.From)
	})

	t.Run("same kind is a no-op", func(t *testing.T) {
		out, err := f.Cast("i", KindInt)
		require.NoError(t, err)
		assert.Equal(t, column(t, f, "i"), column(t, out, "i"))
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := f.Cast("zzz", KindInt)
		var cnf *errors.ColumnNotFoundError
		assert.True(t, errors.As(err, &cnf))
	})
}

func TestCast_WarnsOnTruncation(t *testing.T) {
	var buf bytes.Buffer
	log.Configure(&buf, log.LevelWarn, false)
	t.Cleanup(func() { log.Configure(os.Stderr, log.LevelInfo, false) })

	f, err := New(FloatCol("f", []float64{1.5, 2}))
	require.NoError(t, err)
	_, err = f.Cast("f", KindInt)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"type":"DataConversionWarning"`)
	assert.Contains(t, out, `"column":"f"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestApply(t *testing.T) {
	f := loadCensus(t, WithColumns("AGE", "INCTOT"))
	decade := func(v float64) float64 { return math.Floor(v/10) * 10 }

	out, err := f.Apply("AGE", decade)
	require.NoError(t, err)
	k, _ := out.Kind("AGE")
	assert.Equal(t, KindFloat, k)
	assert.Equal(t, []float64{30, 20, 60, 10, 40}, column(t, out, "AGE")[:5])
	// the source frame keeps the raw ages
	assert.Equal(t, 34.0, column(t, f, "AGE")[0])

	both, err := f.ApplyAs("AGE", "AGE_DECADE", decade)
	require.NoError(t, err)
	assert.Equal(t, []string{"AGE", "INCTOT", "AGE_DECADE"}, both.Names())

	halved, err := f.Apply("INCTOT", func(v float64) float64 { return v / 2 })
	require.NoError(t, err)
	inc := column(t, halved, "INCTOT")
	assert.Equal(t, 26000.0, inc[0])
	assert.True(t, math.IsNaN(inc[5]), "missing values stay missing")

	c, err := New(CategoryCol("c", []string{"a"}))
	require.NoError(t, err)
	_, err = c.Apply("c", decade)
	assert.Error(t, err)
}

func TestSortBy(t *testing.T) {
	f, err := New(
		FloatCol("key", []float64{2, 1, 2, 1}),
		IntCol("id", []int{0, 1, 2, 3}),
	)
	require.NoError(t, err)

	asc, err := f.SortBy("key", false)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 0, 2}, column(t, asc, "id"))

	desc, err := f.SortBy("key", true)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 1, 3}, column(t, desc, "id"), "ties keep input order")
}

func TestSortBy_MissingLast(t *testing.T) {
	f, err := New(
		FloatCol("key", []float64{math.NaN(), 3, 1}),
		CategoryCol("name", []string{"", "b", "a"}),
		IntCol("id", []int{0, 1, 2}),
	)
	require.NoError(t, err)

	asc, err := f.SortBy("key", false)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1, 0}, column(t, asc, "id"))

	desc, err := f.SortBy("key", true)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 0}, column(t, desc, "id"))

	byName, err := f.SortBy("name", true)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 0}, column(t, byName, "id"))
}

func TestSortBy_Census(t *testing.T) {
	f := loadCensus(t)
	out, err := f.SortBy("INCTOT", true)
	require.NoError(t, err)

	inc := column(t, out, "INCTOT")
	assert.Equal(t, []float64{105000, 98000, 91000}, inc[:3])
	assert.True(t, math.IsNaN(inc[18]))
	assert.True(t, math.IsNaN(inc[19]))
	// rows stay aligned across columns
	assert.Equal(t, 41.0, column(t, out, "AGE")[0])
}

func TestFilter(t *testing.T) {
	f := loadCensus(t)

	tests := []struct {
		name  string
		col   string
		op    string
		value interface{}
		want  int
	}{
		{"adults", "AGE", ">=", 18, 18},
		{"minors", "AGE", "<", 18, 2},
		{"float threshold on int column", "AGE", ">", 17.5, 18},
		{"equality", "SEX", "==", 1, 10},
		{"inequality", "SEX", "!=", 1, 10},
		{"income skips missing", "INCTOT", "<=", 1e9, 18},
		{"in list", "STATEFIP", "in", []int{6, 36}, 9},
		{"string value on numeric column", "AGE", "<=", "17", 2},
		{"greater", "AGE", ">", 60, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := f.Filter(tt.col, tt.op, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Rows())
			_, cols := out.Shape()
			assert.Equal(t, 9, cols)
		})
	}
}

func TestFilter_Categories(t *testing.T) {
	f, err := New(
		CategoryCol("c", []string{"a", "b", "", "c"}),
		IntCol("id", []int{0, 1, 2, 3}),
	)
	require.NoError(t, err)

	out, err := f.Filter("c", "in", []string{"a", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3}, column(t, out, "id"))

	out, err = f.Filter("c", "!=", "a")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, column(t, out, "id"), "missing rows never match")
}

func TestFilter_Errors(t *testing.T) {
	f := loadCensus(t)

	_, err := f.Filter("AGE", "~", 1)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = f.Filter("AGE", ">", "old")
	assert.Error(t, err)

	_, err = f.Filter("AGE", ">", []int{1, 2})
	assert.Error(t, err)

	_, err = f.Filter("AGE", ">", struct{}{})
	assert.Error(t, err)

	_, err = f.Filter("NOPE", ">", 1)
	var cnf *errors.ColumnNotFoundError
	assert.True(t, errors.As(err, &cnf))
}

func TestFilterFunc(t *testing.T) {
	f := loadCensus(t)

	out, err := f.FilterFunc("AGE", func(e Element) bool {
		return !e.Missing && int(e.Float)%2 == 0
	})
	require.NoError(t, err)
	for _, age := range column(t, out, "AGE") {
		assert.Zero(t, int(age)%2)
	}
	assert.Equal(t, 9, out.Rows())

	none, err := f.FilterFunc("AGE", func(Element) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, 0, none.Rows())
}

func TestDropMissing(t *testing.T) {
	f := loadCensus(t)

	out, err := f.DropMissing("INCTOT")
	require.NoError(t, err)
	assert.Equal(t, 18, out.Rows())

	out, err = f.DropMissing()
	require.NoError(t, err)
	assert.Equal(t, 17, out.Rows())
	for _, name := range []string{"INCTOT", "EDUC"} {
		for _, v := range column(t, out, name) {
			assert.False(t, math.IsNaN(v))
		}
	}

	_, err = f.DropMissing("NOPE")
	var cnf *errors.ColumnNotFoundError
	assert.True(t, errors.As(err, &cnf))
}
