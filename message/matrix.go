package message

import (
	"fmt"
	"slices"
)

var _ Message = (*Matrix)(nil)

// Matrix is a dense row-major matrix.
// It applies to every tick it covers, so it can be sliced anywhere
// but never merges with the next one.
type Matrix struct {
	Base

	Rows int
	Cols int
	Data []float64
}

// NewMatrix returns a rows x cols matrix. data is row-major and may be nil.
func NewMatrix(time uint64, rows, cols int, data []float64) *Matrix {
	if data == nil {
		data = make([]float64, rows*cols)
	}

	return &Matrix{
		Base: newBase(time),

		Rows: rows,
		Cols: cols,
		Data: data,
	}
}

func (m *Matrix) TypeID() TypeID {
	return TypeMatrix
}

func (m *Matrix) At(row, col int) float64 {
	return m.Data[row*m.Cols+col]
}

func (m *Matrix) Set(row, col int, value float64) {
	m.Data[row*m.Cols+col] = value
}

func (m *Matrix) Clone() Message {
	return &Matrix{
		Base: m.cloneBase(),

		Rows: m.Rows,
		Cols: m.Cols,
		Data: slices.Clone(m.Data),
	}
}

func (m *Matrix) Describe() string {
	return fmt.Sprintf("%s rows=%d cols=%d", m.describeBase("matrix"), m.Rows, m.Cols)
}

func (m *Matrix) MergeWith(other Message) (Message, error) {
	return other, nil
}

func (m *Matrix) CanSliceAt(_ uint64, _ []Message, _ int64) bool {
	return true
}

func (m *Matrix) SliceOut(sliceTime uint64, stream []Message, _ int64) (Message, []Message, bool) {
	if m.time == sliceTime {
		return m, stream[1:], true
	}

	slice := m.Clone()
	slice.SetTime(sliceTime)

	return slice, stream, true
}
