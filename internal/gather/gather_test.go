package gather

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storecast/internal/domain"
	"storecast/internal/frame"
	"storecast/internal/store"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRangeOf(t *testing.T) {
	_, ok := RangeOf(nil)
	assert.False(t, ok)

	r, ok := RangeOf([]time.Time{day("2024-03-05"), day("2024-01-01"), day("2024-02-10")})
	require.True(t, ok)
	assert.Equal(t, DateRange{Start: day("2024-01-01"), End: day("2024-03-05")}, r)
	assert.True(t, r.Contains(day("2024-03-05")))
	assert.False(t, r.Contains(day("2024-03-06")))
}

func TestReadTransactions(t *testing.T) {
	f, err := ReadTransactions(strings.NewReader(
		"Store No_,Item No_,Date,Net Amount\n"+
			"1,100,2024-03-05,10.5\n"+
			"1,100,2024-03-06,12\n"), domain.DefaultColumns())
	require.NoError(t, err)

	obs, err := f.Observations(domain.DefaultColumns())
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, domain.Observation{Store: "1", Item: "100", Date: day("2024-03-05"), NetAmount: 10.5}, obs[0])

	_, err = ReadTransactions(strings.NewReader("Store No_,Date\n1,2024-03-05\n"), domain.DefaultColumns())
	assert.ErrorIs(t, err, frame.ErrMissingColumn)
}

func TestReadFXRates(t *testing.T) {
	rates, err := ReadFXRates(strings.NewReader("Date,fx_rate\n2024-03-05,30.9\n2024-03-06,49.5\n"))
	require.NoError(t, err)
	assert.Equal(t, []domain.FXRate{
		{Date: day("2024-03-05"), Rate: 30.9},
		{Date: day("2024-03-06"), Rate: 49.5},
	}, rates)
}

func TestReadInflationIntegerIndex(t *testing.T) {
	points, err := ReadInflation(strings.NewReader("Date,inflation_index\n2024-03-01,112\n2024-04-01,115\n"))
	require.NoError(t, err)
	assert.Equal(t, []domain.InflationPoint{
		{Date: day("2024-03-01"), Index: 112},
		{Date: day("2024-04-01"), Index: 115},
	}, points)
}

func TestReadStockLevels(t *testing.T) {
	levels, err := ReadStockLevels(strings.NewReader(
		"Location Code,Item No_,Date,Stock\n1,100,2024-03-12,57\nS2,A7,2024-03-12,3.5\n"))
	require.NoError(t, err)
	assert.Equal(t, []domain.StockLevel{
		{Location: "1", Item: "100", Date: day("2024-03-12"), Qty: 57},
		{Location: "S2", Item: "A7", Date: day("2024-03-12"), Qty: 3.5},
	}, levels)

	_, err = ReadStockLevels(strings.NewReader("Item No_,Date,Stock\n100,2024-03-12,57\n"))
	assert.ErrorIs(t, err, frame.ErrMissingColumn)
}

func TestGatherersSaveToStores(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ext, err := store.NewSQLiteStore(filepath.Join(dir, "storecast.db"))
	require.NoError(t, err)
	defer ext.Close()
	ps := store.NewParquetStore(dir)

	gatherers := []Gatherer{
		NewTransactionGatherer(writeFile(t, "tx.csv",
			"Store No_,Item No_,Date,Net Amount\n1,100,2024-03-05,10\n1,100,2024-03-05,10\n"),
			domain.DefaultColumns(), ps, nil),
		NewFXGatherer(writeFile(t, "fx.csv", "Date,fx_rate\n2024-03-05,30.9\n"), ext, nil),
		NewInflationGatherer(writeFile(t, "cpi.csv", "Date,inflation_index\n2024-03-01,112.5\n"), ext, nil),
		NewStockGatherer(writeFile(t, "stock.csv", "Location Code,Item No_,Date,Stock\n1,100,2024-03-05,57\n"), ext, nil),
	}
	for _, g := range gatherers {
		require.NoError(t, g.Run(ctx), g.Name())
	}

	obs, err := ps.ReadTransactions(ctx, day("2024-01-01"), day("2024-12-31"))
	require.NoError(t, err)
	assert.Len(t, obs, 2, "duplicates are kept")

	rates, err := ext.LoadFXRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.FXRate{{Date: day("2024-03-05"), Rate: 30.9}}, rates)

	points, err := ext.LoadInflation(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.InflationPoint{{Date: day("2024-03-01"), Index: 112.5}}, points)

	levels, err := ext.LoadStockLevels(ctx, day("2024-03-01"), day("2024-03-31"))
	require.NoError(t, err)
	assert.Equal(t, []domain.StockLevel{{Location: "1", Item: "100", Date: day("2024-03-05"), Qty: 57}}, levels)
}

func TestGathererErrors(t *testing.T) {
	ext, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "storecast.db"))
	require.NoError(t, err)
	defer ext.Close()

	g := NewFXGatherer(filepath.Join(t.TempDir(), "missing.csv"), ext, nil)
	assert.Equal(t, "fx", g.Name())
	assert.ErrorContains(t, g.Run(context.Background()), "fx")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewFXGatherer(writeFile(t, "fx.csv", "Date,fx_rate\n"), ext, nil).Run(ctx), context.Canceled)
}
