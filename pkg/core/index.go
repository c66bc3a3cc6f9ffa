package core

import (
	"bf16lut/pkg/common"
	"bf16lut/pkg/core/generator"
)

// Locator resolves an input value to the table entry serving it. It hides
// the difference between formula routing and ordered bin search.
type Locator interface {
	Get(x float64) (common.Entry, bool)
	Count() int
	Type() string // "Formula", "BTree"
}

// FormulaLocator routes with the constant-time index formula.
type FormulaLocator struct {
	table *generator.Table
}

func NewFormulaLocator(t *generator.Table) *FormulaLocator {
	return &FormulaLocator{table: t}
}

func (fl *FormulaLocator) Get(x float64) (common.Entry, bool) {
	if len(fl.table.Entries) == 0 {
		return common.Entry{}, false
	}
	return fl.table.Entries[fl.table.Index(x)], true
}

func (fl *FormulaLocator) Count() int {
	return len(fl.table.Entries)
}

func (fl *FormulaLocator) Type() string {
	return "Formula"
}
