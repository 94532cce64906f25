package questdb

import (
	"time"
)

type ColumnType int

const (
	ColumnTypeBool ColumnType = iota
	ColumnTypeInt
	ColumnTypeFloat
	ColumnTypeString
	ColumnTypeTimestamp
)

type Column struct {
	Name  string
	Type  ColumnType
	Value any
}

func newColumn(name string, typ ColumnType, value any) *Column {
	return &Column{
		Name:  name,
		Type:  typ,
		Value: value,
	}
}

func NewBoolColumn(name string, value bool) *Column {
	return newColumn(name, ColumnTypeBool, value)
}

func NewIntColumn(name string, value int64) *Column {
	return newColumn(name, ColumnTypeInt, value)
}

func NewFloatColumn(name string, value float64) *Column {
	return newColumn(name, ColumnTypeFloat, value)
}

func NewStringColumn(name string, value string) *Column {
	return newColumn(name, ColumnTypeString, value)
}

func NewTimestampColumn(name string, value time.Time) *Column {
	return newColumn(name, ColumnTypeTimestamp, value)
}

type Symbol struct {
	Name  string
	Value string
}

func NewSymbol(name string, value string) *Symbol {
	return &Symbol{
		Name:  name,
		Value: value,
	}
}

// Row is a line of a table, written at Timestamp.
type Row struct {
	Table     string
	Timestamp time.Time
	Symbols   []*Symbol
	Columns   []*Column
}

func NewRow(table string, timestamp time.Time) *Row {
	return &Row{
		Table:     table,
		Timestamp: timestamp,
	}
}

func (r *Row) AddSymbol(symbol *Symbol) {
	if symbol != nil {
		r.Symbols = append(r.Symbols, symbol)
	}
}

func (r *Row) AddColumn(column *Column) {
	if column != nil {
		r.Columns = append(r.Columns, column)
	}
}

// Column returns the column with the given name, nil if absent.
func (r *Row) Column(name string) *Column {
	for _, col := range r.Columns {
		if col.Name == name {
			return col
		}
	}
	return nil
}
