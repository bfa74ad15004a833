package frame

import (
	"fmt"
	"io"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const dateLayout = "2006-01-02"

// dateLayouts are tried in order when parsing date strings.
var dateLayouts = []string{dateLayout, "2006-01-02 15:04:05", time.RFC3339, "01/02/2006"}

// ParseDate parses s with the first matching layout and truncates it to a
// date.
func ParseDate(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return DateOf(t), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// ReadCSV loads a CSV export through gota's type detection. Columns named in
// dateCols are parsed as dates.
func ReadCSV(r io.Reader, dateCols ...string) (*Frame, error) {
	return FromDataFrame(dataframe.ReadCSV(r), dateCols...)
}

// ToDataFrame converts f into a gota DataFrame for model code that consumes
// gota. Dates become "YYYY-MM-DD" strings; missing floats stay NaN.
func ToDataFrame(f *Frame) dataframe.DataFrame {
	ss := make([]series.Series, 0, f.Width())
	for i, name := range f.names {
		switch c := f.cols[i].(type) {
		case Floats:
			ss = append(ss, series.New([]float64(c), series.Float, name))
		case Ints:
			ss = append(ss, series.New([]int(c), series.Int, name))
		case Bools:
			ss = append(ss, series.New([]bool(c), series.Bool, name))
		case Strings:
			ss = append(ss, series.New([]string(c), series.String, name))
		case Dates:
			vals := make([]string, len(c))
			for j, d := range c {
				vals[j] = d.Format(dateLayout)
			}
			ss = append(ss, series.New(vals, series.String, name))
		}
	}
	return dataframe.New(ss...)
}

// FromDataFrame converts a gota DataFrame into a frame. Columns named in
// dateCols are parsed with ParseDate.
func FromDataFrame(df dataframe.DataFrame, dateCols ...string) (*Frame, error) {
	if df.Err != nil {
		return nil, fmt.Errorf("dataframe: %w", df.Err)
	}
	isDate := make(map[string]bool, len(dateCols))
	for _, n := range dateCols {
		isDate[n] = true
	}

	out := Empty()
	for _, name := range df.Names() {
		s := df.Col(name)
		var col Column
		switch s.Type() {
		case series.Float:
			col = Floats(s.Float())
		case series.Int:
			vals, err := s.Int()
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", name, err)
			}
			col = Ints(vals)
		case series.Bool:
			vals, err := s.Bool()
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", name, err)
			}
			col = Bools(vals)
		default:
			recs := s.Records()
			if !isDate[name] {
				col = Strings(recs)
				break
			}
			dates := make(Dates, len(recs))
			for i, r := range recs {
				d, err := ParseDate(r)
				if err != nil {
					return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
				}
				dates[i] = d
			}
			col = dates
		}
		var err error
		if out, err = out.With(name, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}
