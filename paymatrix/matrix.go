// Package paymatrix exposes the 7th Pay Commission pay matrix: for each pay
// level, the ordered basic-pay cells an employee can sit in.
//
// The table ships as an embedded CSV (level,cell,basic_pay) and is read-only.
package paymatrix

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/warp/paycalc/engine"
)

//go:embed matrix.csv
var matrixCSV []byte

var (
	// ErrUnknownLevel is returned for a pay level that is not in the matrix.
	ErrUnknownLevel = errors.New("unknown pay level")

	// ErrBasicPayNotInLevel is returned when a basic pay is not one of the
	// cells published for its level.
	ErrBasicPayNotInLevel = errors.New("basic pay is not a cell of the pay level")
)

// row is one CSV record.
type row struct {
	Level    string `csv:"level"`
	Cell     int    `csv:"cell"`
	BasicPay int64  `csv:"basic_pay"`
}

// Level is one column of the matrix.
type Level struct {
	Label string  `json:"level"`
	Cells []int64 `json:"cells"`
}

// Min returns the entry pay of the level.
func (l Level) Min() int64 {
	if len(l.Cells) == 0 {
		return 0
	}
	return l.Cells[0]
}

// Max returns the top cell of the level.
func (l Level) Max() int64 {
	if len(l.Cells) == 0 {
		return 0
	}
	return l.Cells[len(l.Cells)-1]
}

// Matrix is an immutable pay matrix.
type Matrix struct {
	levels []Level
	index  map[string]int
}

// Parse reads a level,cell,basic_pay CSV. Cells must be numbered 1..n
// without gaps and strictly increasing in pay.
func Parse(data []byte) (*Matrix, error) {
	var rows []row
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse pay matrix: %w", err)
	}

	m := &Matrix{index: make(map[string]int)}
	for i, r := range rows {
		label := normalize(r.Level)
		if label == "" {
			return nil, fmt.Errorf("pay matrix row %d: empty level", i+1)
		}
		pos, ok := m.index[label]
		if !ok {
			pos = len(m.levels)
			m.index[label] = pos
			m.levels = append(m.levels, Level{Label: label})
		}
		lvl := &m.levels[pos]
		if r.Cell != len(lvl.Cells)+1 {
			return nil, fmt.Errorf("pay matrix row %d: level %s cell %d out of sequence", i+1, label, r.Cell)
		}
		if r.BasicPay <= lvl.Max() {
			return nil, fmt.Errorf("pay matrix row %d: level %s pay %d not increasing", i+1, label, r.BasicPay)
		}
		lvl.Cells = append(lvl.Cells, r.BasicPay)
	}
	if len(m.levels) == 0 {
		return nil, errors.New("pay matrix is empty")
	}

	// Order by numeric level, then label ("13" before "13A").
	sort.SliceStable(m.levels, func(i, j int) bool {
		li, lj := engine.ParseLevel(m.levels[i].Label), engine.ParseLevel(m.levels[j].Label)
		if li != lj {
			return li < lj
		}
		return m.levels[i].Label < m.levels[j].Label
	})
	for i, l := range m.levels {
		m.index[l.Label] = i
	}
	return m, nil
}

var defaultMatrix *Matrix

func init() {
	m, err := Parse(matrixCSV)
	if err != nil {
		panic(fmt.Sprintf("embedded matrix.csv: %v", err))
	}
	defaultMatrix = m
}

// Default returns the embedded 7th CPC pay matrix.
func Default() *Matrix {
	return defaultMatrix
}

func normalize(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}

// Levels returns every level in matrix order.
func (m *Matrix) Levels() []Level {
	out := make([]Level, len(m.levels))
	for i, l := range m.levels {
		out[i] = Level{Label: l.Label, Cells: append([]int64(nil), l.Cells...)}
	}
	return out
}

// Level looks up one level. Labels are matched case-insensitively.
func (m *Matrix) Level(label string) (Level, error) {
	pos, ok := m.index[normalize(label)]
	if !ok {
		return Level{}, fmt.Errorf("%w: %q", ErrUnknownLevel, label)
	}
	l := m.levels[pos]
	return Level{Label: l.Label, Cells: append([]int64(nil), l.Cells...)}, nil
}

// Contains checks that basicPay is a published cell of the level.
func (m *Matrix) Contains(label string, basicPay int64) error {
	pos, ok := m.index[normalize(label)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLevel, label)
	}
	cells := m.levels[pos].Cells
	i := sort.Search(len(cells), func(i int) bool { return cells[i] >= basicPay })
	if i == len(cells) || cells[i] != basicPay {
		return fmt.Errorf("%w: %d is not in level %s", ErrBasicPayNotInLevel, basicPay, m.levels[pos].Label)
	}
	return nil
}

// CellOf returns the 1-based cell number of basicPay within the level.
func (m *Matrix) CellOf(label string, basicPay int64) (int, error) {
	if err := m.Contains(label, basicPay); err != nil {
		return 0, err
	}
	cells := m.levels[m.index[normalize(label)]].Cells
	return sort.Search(len(cells), func(i int) bool { return cells[i] >= basicPay }) + 1, nil
}
