package frame

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storecast/internal/domain"
)

func sampleFrame(t *testing.T) *Frame {
	t.Helper()
	obs := []domain.Observation{
		{Store: "1", Item: "100", Date: time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC), NetAmount: 10},
		{Store: "1", Item: "100", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), NetAmount: 20},
	}
	f, err := FromObservations(obs, domain.DefaultColumns())
	require.NoError(t, err)
	return f
}

func TestFromObservations(t *testing.T) {
	f := sampleFrame(t)

	assert.Equal(t, 2, f.Len())
	assert.Equal(t, []string{"Store No_", "Item No_", "Date", "Net Amount"}, f.Names())

	dates, err := f.Dates("Date")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), dates[0], "time of day is dropped")
}

func TestWithAppendsWithoutMutating(t *testing.T) {
	f := sampleFrame(t)

	g, err := f.With("flag", Bools{true, false})
	require.NoError(t, err)

	assert.Equal(t, 4, f.Width(), "receiver must not change")
	assert.Equal(t, 5, g.Width())
	assert.Equal(t, "flag", g.Names()[4])
}

func TestWithErrors(t *testing.T) {
	f := sampleFrame(t)

	_, err := f.With("Date", Bools{true, false})
	assert.ErrorIs(t, err, ErrColumnExists)

	_, err = f.With("short", Bools{true})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestMissingColumn(t *testing.T) {
	f := sampleFrame(t)

	_, err := f.Floats("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))

	var mce *MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, "nope", mce.Name)

	assert.ErrorIs(t, f.Require("Date", "other"), ErrMissingColumn)
	assert.NoError(t, f.Require("Date", "Net Amount"))
}

func TestKindMismatch(t *testing.T) {
	f := sampleFrame(t)

	_, err := f.Floats("Date")
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestTake(t *testing.T) {
	f := sampleFrame(t)

	g := f.Take([]int{1, 1, -1})
	assert.Equal(t, 3, g.Len())

	vals, err := g.Floats("Net Amount")
	require.NoError(t, err)
	assert.Equal(t, 20.0, vals[0])
	assert.Equal(t, 20.0, vals[1])
	assert.True(t, math.IsNaN(vals[2]))

	stores, err := g.Strings("Store No_")
	require.NoError(t, err)
	assert.Equal(t, "", stores[2])
}

func TestDataFrameRoundTrip(t *testing.T) {
	f := sampleFrame(t)
	f, err := f.With("flag", Bools{true, false})
	require.NoError(t, err)
	f, err = f.With("week", Ints{1, 1})
	require.NoError(t, err)

	df := ToDataFrame(f)
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, f.Names(), df.Names())

	back, err := FromDataFrame(df, "Date")
	require.NoError(t, err)

	dates, err := back.Dates("Date")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), dates[1])

	flags, err := back.Bools("flag")
	require.NoError(t, err)
	assert.Equal(t, Bools{true, false}, flags)

	vals, err := back.Floats("Net Amount")
	require.NoError(t, err)
	assert.Equal(t, Floats{10, 20}, vals)
}

func TestReadCSVAndObservations(t *testing.T) {
	csv := "Store No_,Item No_,Date,Net Amount\n" +
		"1,100,2024-01-02,10.5\n" +
		"2,100,2024-01-01 00:00:00,20\n"
	f, err := ReadCSV(strings.NewReader(csv), "Date")
	require.NoError(t, err)
	require.Equal(t, 2, f.Len())

	stores, err := f.Keys("Store No_")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, stores)

	obs, err := f.Observations(domain.DefaultColumns())
	require.NoError(t, err)
	assert.Equal(t, domain.Observation{
		Store: "2", Item: "100", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), NetAmount: 20,
	}, obs[1])
	assert.Equal(t, 10.5, obs[0].NetAmount)

	_, err = ReadCSV(strings.NewReader("Date\nnot-a-date\n"), "Date")
	assert.Error(t, err)
}

func TestKeysRejectsOtherKinds(t *testing.T) {
	f := sampleFrame(t)
	_, err := f.Keys("Net Amount")
	assert.ErrorIs(t, err, ErrKindMismatch)
	_, err = f.Keys("nope")
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestNumbers(t *testing.T) {
	f, err := sampleFrame(t).With("qty", Ints{3, 4})
	require.NoError(t, err)

	qty, err := f.Numbers("qty")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, qty)

	amounts, err := f.Numbers("Net Amount")
	require.NoError(t, err)
	amounts[0] = -1
	orig, err := f.Floats("Net Amount")
	require.NoError(t, err)
	assert.Equal(t, 10.0, orig[0], "Numbers returns a copy")

	_, err = f.Numbers("Store No_")
	assert.ErrorIs(t, err, ErrKindMismatch)
}
