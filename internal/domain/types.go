// Package domain defines the core data types shared across storecast:
// transaction observations, their grouping key and the external tables that
// are joined onto the feature frame.
package domain

import "time"

// Observation is one transaction row keyed by (store, item, date).
// (Store, Item, Date) is not unique; duplicates are distinct observations.
type Observation struct {
	Store     string
	Item      string
	Date      time.Time
	NetAmount float64
}

// GroupKey partitions observations for every time-series feature.
type GroupKey struct {
	Store string
	Item  string
}

// Key returns the observation's group key.
func (o Observation) Key() GroupKey {
	return GroupKey{Store: o.Store, Item: o.Item}
}

// FXRate is one row of the foreign-exchange table (USD/EGP).
type FXRate struct {
	Date time.Time
	Rate float64
}

// InflationPoint is one row of the monthly consumer inflation table.
type InflationPoint struct {
	Date  time.Time
	Index float64
}

// StockLevel is one row of the stock table. Location maps onto the store
// column during joins.
type StockLevel struct {
	Location string
	Item     string
	Date     time.Time
	Qty      float64
}

// Columns names the input columns of a transaction frame.
type Columns struct {
	Store string `yaml:"store"`
	Item  string `yaml:"item"`
	Date  string `yaml:"date"`
	Value string `yaml:"value"`
}

// DefaultColumns returns the column names used by the retail exports.
func DefaultColumns() Columns {
	return Columns{
		Store: "Store No_",
		Item:  "Item No_",
		Date:  "Date",
		Value: "Net Amount",
	}
}
