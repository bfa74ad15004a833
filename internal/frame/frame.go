// Package frame implements the feature frame: an immutable, column-oriented
// table of equally long typed columns. Operations never modify a frame in
// place; they return a new frame that shares the storage of untouched
// columns.
package frame

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"storecast/internal/domain"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrMissingColumn is wrapped by MissingColumnError.
	ErrMissingColumn = errors.New("missing column")

	// ErrColumnExists is returned when appending a column whose name is
	// already present.
	ErrColumnExists = errors.New("column already exists")

	// ErrLengthMismatch is returned when a column's length differs from the
	// frame's row count.
	ErrLengthMismatch = errors.New("column length mismatch")

	// ErrKindMismatch is returned when a column is read as the wrong kind.
	ErrKindMismatch = errors.New("column kind mismatch")
)

// MissingColumnError reports a required column that is not in the frame.
type MissingColumnError struct {
	Name      string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q (have: %s)", e.Name, strings.Join(e.Available, ", "))
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

// ---------------------------------------------------------------------------
// Columns
// ---------------------------------------------------------------------------

// Kind identifies the element type of a column.
type Kind int

const (
	KindFloat Kind = iota
	KindInt
	KindBool
	KindString
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Column is a typed column. Implementations are the slice types below.
type Column interface {
	Kind() Kind
	Len() int
	take(idx []int) Column
}

// Floats is a float column; NaN marks a missing value.
type Floats []float64

// Ints is an integer column.
type Ints []int

// Bools is a boolean column.
type Bools []bool

// Strings is a string (categorical) column.
type Strings []string

// Dates is a calendar-date column.
type Dates []time.Time

func (c Floats) Kind() Kind  { return KindFloat }
func (c Ints) Kind() Kind    { return KindInt }
func (c Bools) Kind() Kind   { return KindBool }
func (c Strings) Kind() Kind { return KindString }
func (c Dates) Kind() Kind   { return KindDate }

func (c Floats) Len() int  { return len(c) }
func (c Ints) Len() int    { return len(c) }
func (c Bools) Len() int   { return len(c) }
func (c Strings) Len() int { return len(c) }
func (c Dates) Len() int   { return len(c) }

func (c Floats) take(idx []int) Column {
	out := Floats(takeSlice(c, idx))
	for i, j := range idx {
		if j < 0 {
			out[i] = math.NaN()
		}
	}
	return out
}

func (c Ints) take(idx []int) Column    { return Ints(takeSlice(c, idx)) }
func (c Bools) take(idx []int) Column   { return Bools(takeSlice(c, idx)) }
func (c Strings) take(idx []int) Column { return Strings(takeSlice(c, idx)) }
func (c Dates) take(idx []int) Column   { return Dates(takeSlice(c, idx)) }

// takeSlice gathers src[idx[i]] into a new slice. A negative index yields
// the zero value (missing for Floats).
func takeSlice[T any](src []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		if j >= 0 {
			out[i] = src[j]
		}
	}
	return out
}

// Missing returns the float missing-value marker.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// NewMissingFloats returns a float column of n missing values.
func NewMissingFloats(n int) Floats {
	out := make(Floats, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// ---------------------------------------------------------------------------
// Frame
// ---------------------------------------------------------------------------

// Frame is an ordered set of named, equally long columns.
type Frame struct {
	names []string
	cols  []Column
	index map[string]int
	rows  int
}

// Empty returns a frame with no columns and no rows.
func Empty() *Frame {
	return &Frame{index: make(map[string]int)}
}

// New builds a frame from parallel name and column lists.
func New(names []string, cols []Column) (*Frame, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("frame: %d names for %d columns", len(names), len(cols))
	}
	f := Empty()
	for i := range names {
		var err error
		if f, err = f.With(names[i], cols[i]); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// FromObservations builds a transaction frame with store, item, date and
// value columns named by cols.
func FromObservations(obs []domain.Observation, cols domain.Columns) (*Frame, error) {
	stores := make(Strings, len(obs))
	items := make(Strings, len(obs))
	dates := make(Dates, len(obs))
	values := make(Floats, len(obs))
	for i, o := range obs {
		stores[i] = o.Store
		items[i] = o.Item
		dates[i] = DateOf(o.Date)
		values[i] = o.NetAmount
	}
	return New(
		[]string{cols.Store, cols.Item, cols.Date, cols.Value},
		[]Column{stores, items, dates, values},
	)
}

// Observations converts a transaction frame back into observations. The
// value column may be float or int; identifiers may be string or int.
func (f *Frame) Observations(cols domain.Columns) ([]domain.Observation, error) {
	stores, err := f.Keys(cols.Store)
	if err != nil {
		return nil, err
	}
	items, err := f.Keys(cols.Item)
	if err != nil {
		return nil, err
	}
	dates, err := f.Dates(cols.Date)
	if err != nil {
		return nil, err
	}
	values, err := f.Numbers(cols.Value)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Observation, f.Len())
	for i := range out {
		out[i] = domain.Observation{Store: stores[i], Item: items[i], Date: dates[i], NetAmount: values[i]}
	}
	return out, nil
}

// DateOf truncates t to midnight UTC of its own calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Width returns the number of columns.
func (f *Frame) Width() int { return len(f.cols) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Has reports whether the frame contains the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Require returns a MissingColumnError for the first absent name.
func (f *Frame) Require(names ...string) error {
	for _, n := range names {
		if !f.Has(n) {
			return &MissingColumnError{Name: n, Available: f.Names()}
		}
	}
	return nil
}

// Column returns the named column.
func (f *Frame) Column(name string) (Column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, &MissingColumnError{Name: name, Available: f.Names()}
	}
	return f.cols[i], nil
}

// With returns a new frame with c appended under name. The receiver is not
// modified. The first column of an empty frame fixes the row count.
func (f *Frame) With(name string, c Column) (*Frame, error) {
	if f.Has(name) {
		return nil, fmt.Errorf("%w: %q", ErrColumnExists, name)
	}
	if len(f.cols) > 0 && c.Len() != f.rows {
		return nil, fmt.Errorf("%w: %q has %d rows, frame has %d", ErrLengthMismatch, name, c.Len(), f.rows)
	}

	out := &Frame{
		names: make([]string, len(f.names), len(f.names)+1),
		cols:  make([]Column, len(f.cols), len(f.cols)+1),
		index: make(map[string]int, len(f.index)+1),
		rows:  c.Len(),
	}
	copy(out.names, f.names)
	copy(out.cols, f.cols)
	for k, v := range f.index {
		out.index[k] = v
	}
	out.names = append(out.names, name)
	out.cols = append(out.cols, c)
	out.index[name] = len(out.cols) - 1
	return out, nil
}

// Take returns a frame whose row i is the receiver's row idx[i]. Indexes may
// repeat (row multiplication in joins); a negative index yields zero values,
// or missing for float columns.
func (f *Frame) Take(idx []int) *Frame {
	out := &Frame{
		names: f.Names(),
		cols:  make([]Column, len(f.cols)),
		index: make(map[string]int, len(f.index)),
		rows:  len(idx),
	}
	for k, v := range f.index {
		out.index[k] = v
	}
	for i, c := range f.cols {
		out.cols[i] = c.take(idx)
	}
	return out
}

// ---------------------------------------------------------------------------
// Typed accessors
// ---------------------------------------------------------------------------

func (f *Frame) typed(name string, want Kind) (Column, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind() != want {
		return nil, fmt.Errorf("%w: %q is %s, want %s", ErrKindMismatch, name, c.Kind(), want)
	}
	return c, nil
}

// Floats returns the named float column.
func (f *Frame) Floats(name string) (Floats, error) {
	c, err := f.typed(name, KindFloat)
	if err != nil {
		return nil, err
	}
	return c.(Floats), nil
}

// Ints returns the named integer column.
func (f *Frame) Ints(name string) (Ints, error) {
	c, err := f.typed(name, KindInt)
	if err != nil {
		return nil, err
	}
	return c.(Ints), nil
}

// Bools returns the named boolean column.
func (f *Frame) Bools(name string) (Bools, error) {
	c, err := f.typed(name, KindBool)
	if err != nil {
		return nil, err
	}
	return c.(Bools), nil
}

// Strings returns the named string column.
func (f *Frame) Strings(name string) (Strings, error) {
	c, err := f.typed(name, KindString)
	if err != nil {
		return nil, err
	}
	return c.(Strings), nil
}

// Dates returns the named date column.
func (f *Frame) Dates(name string) (Dates, error) {
	c, err := f.typed(name, KindDate)
	if err != nil {
		return nil, err
	}
	return c.(Dates), nil
}

// Numbers returns a float or int column as float64 values. The result is a
// copy.
func (f *Frame) Numbers(name string) ([]float64, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, c.Len())
	switch c := c.(type) {
	case Floats:
		copy(out, c)
	case Ints:
		for i, v := range c {
			out[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("%w: %q is %s, want float or int", ErrKindMismatch, name, c.Kind())
	}
	return out, nil
}

// Keys returns an identifier column as strings. Identifiers loaded from
// numeric sources arrive as Ints and are rendered in decimal.
func (f *Frame) Keys(name string) ([]string, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	switch c := c.(type) {
	case Strings:
		return c, nil
	case Ints:
		out := make([]string, len(c))
		for i, v := range c {
			out[i] = strconv.Itoa(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q is %s, want string or int", ErrKindMismatch, name, c.Kind())
	}
}
