package simulation

import (
	"fmt"
	"math"
)

// TrialTable maps outcome column names to populations of equal length,
// row-aligned by trial index. It is immutable once built and safe for
// concurrent readers.
type TrialTable struct {
	trials   int
	seed     uint64
	order    []string
	columns  map[string]Population
	warnings []NonFiniteTrialWarning
}

func newTrialTable(trials int, seed uint64) *TrialTable {
	return &TrialTable{
		trials:  trials,
		seed:    seed,
		columns: make(map[string]Population),
	}
}

// set adds a column during construction. Only the aggregator calls it.
func (t *TrialTable) set(name string, p Population) {
	if len(p) != t.trials {
		panic(fmt.Sprintf("simulation: column %q has %d trials, table has %d", name, len(p), t.trials))
	}
	if _, exists := t.columns[name]; !exists {
		t.order = append(t.order, name)
	}
	t.columns[name] = p
}

// Trials returns the number of rows
func (t *TrialTable) Trials() int {
	return t.trials
}

// Seed returns the seed the table was generated with
func (t *TrialTable) Seed() uint64 {
	return t.seed
}

// Columns returns the column names in table order
func (t *TrialTable) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// HasColumn reports whether the table holds the named column
func (t *TrialTable) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column returns a copy of the named column
func (t *TrialTable) Column(name string) (Population, error) {
	p, err := t.column(name)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// column returns the stored population without copying. Callers must not modify it.
func (t *TrialTable) column(name string) (Population, error) {
	p, ok := t.columns[name]
	if !ok {
		return nil, &UnknownColumnError{Column: name}
	}
	return p, nil
}

// Row returns the values of trial i in column order
func (t *TrialTable) Row(i int) []float64 {
	row := make([]float64, len(t.order))
	for c, name := range t.order {
		row[c] = t.columns[name][i]
	}
	return row
}

// Warnings returns the non-finite trial counts recorded while aggregating
func (t *TrialTable) Warnings() []NonFiniteTrialWarning {
	out := make([]NonFiniteTrialWarning, len(t.warnings))
	copy(out, t.warnings)
	return out
}

// Equal reports whether both tables hold bit-identical columns in the same order
func (t *TrialTable) Equal(other *TrialTable) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.trials != other.trials || len(t.order) != len(other.order) {
		return false
	}
	for i, name := range t.order {
		if other.order[i] != name {
			return false
		}
		a, b := t.columns[name], other.columns[name]
		for j := range a {
			if math.Float64bits(a[j]) != math.Float64bits(b[j]) {
				return false
			}
		}
	}
	return true
}
