package dataframe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	f, err := New(
		FloatCol("x", []float64{5, 1, math.NaN(), 3, 2, 4}),
		CategoryCol("c", []string{"a", "b", "a", "", "c", "a"}),
	)
	require.NoError(t, err)

	sums := f.Describe()
	require.Len(t, sums, 2)

	x := sums[0]
	assert.Equal(t, "x", x.Name)
	assert.Equal(t, KindFloat, x.Kind)
	assert.Equal(t, 5, x.Count)
	assert.Equal(t, 1, x.Missing)
	assert.InDelta(t, 3.0, x.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(2.5), x.Std, 1e-12)
	assert.Equal(t, 1.0, x.Min)
	assert.Equal(t, 3.0, x.Median)
	assert.Equal(t, 5.0, x.Max)
	assert.LessOrEqual(t, x.Q25, x.Median)
	assert.GreaterOrEqual(t, x.Q75, x.Median)

	c := sums[1]
	assert.Equal(t, KindCategory, c.Kind)
	assert.Equal(t, 5, c.Count)
	assert.Equal(t, 1, c.Missing)
	assert.Equal(t, 3, c.Distinct)
	assert.True(t, math.IsNaN(c.Mean))
}

func TestDescribe_Census(t *testing.T) {
	f := loadCensus(t, WithColumns("AGE", "INCTOT"))
	sums := f.Describe()

	age := sums[0]
	assert.Equal(t, 20, age.Count)
	assert.InDelta(t, 39.55, age.Mean, 1e-9)
	assert.InDelta(t, 16.6558824759492, age.Std, 1e-9)
	assert.Equal(t, 15.0, age.Min)
	assert.Equal(t, 70.0, age.Max)

	income := sums[1]
	assert.Equal(t, 18, income.Count)
	assert.Equal(t, 2, income.Missing)
}

func TestDescribe_SingleValue(t *testing.T) {
	f, err := New(IntCol("a", []int{7}))
	require.NoError(t, err)
	s := f.Describe()[0]
	assert.Equal(t, 7.0, s.Mean)
	assert.True(t, math.IsNaN(s.Std))
}
