package preprocess

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/hupe1980/vecsim/table"
)

// DefaultIDColumn is the identifier column of recipe tables.
const DefaultIDColumn = "recipe_id"

// PrepTimeColumn is the column whose "a-b" ranges are collapsed to "b".
const PrepTimeColumn = "prep_time"

// ErrInvalidInput is returned for a nil table or a missing id column.
var ErrInvalidInput = errors.New("preprocess: invalid input")

type options struct {
	rand   *rand.Rand
	logger *slog.Logger
}

// Option configures a Preprocessor.
type Option func(*options)

// WithRand sets the random source used to pick among duplicate ids.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rand = r }
}

// WithLogger sets the logger. Pass nil to disable logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Preprocessor holds a validated, deduplicated raw table.
type Preprocessor struct {
	tbl      *table.Table
	idColumn string
	columns  []string
	logger   *slog.Logger
}

// New validates raw and removes duplicate ids.
//
// The id column must exist and hold no nulls. sel must resolve to existing
// columns; the id column is never an attribute. After deduplication every
// non-id column must be free of nulls, otherwise New returns a
// *table.NullValuesError.
func New(raw *table.Table, sel table.Selection, idColumn string, optFns ...Option) (*Preprocessor, error) {
	o := options{}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.rand == nil {
		o.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if raw == nil {
		return nil, fmt.Errorf("%w: table is nil", ErrInvalidInput)
	}
	if _, ok := raw.Column(idColumn); !ok {
		return nil, fmt.Errorf("%w: id column %q not found", ErrInvalidInput, idColumn)
	}
	if err := raw.CheckNoNulls(idColumn); err != nil {
		return nil, err
	}

	resolved, err := sel.Resolve(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	columns := slices.DeleteFunc(resolved, func(n string) bool { return n == idColumn })

	deduped, err := Dedupe(raw, idColumn, o.rand)
	if err != nil {
		return nil, err
	}
	if dropped := raw.NumRows() - deduped.NumRows(); dropped > 0 {
		o.logger.Debug("removed duplicate ids", "column", idColumn, "rows", dropped)
	}

	attrs := slices.DeleteFunc(deduped.Names(), func(n string) bool { return n == idColumn })
	if err := deduped.CheckNoNulls(attrs...); err != nil {
		return nil, err
	}

	return &Preprocessor{
		tbl:      deduped,
		idColumn: idColumn,
		columns:  columns,
		logger:   o.logger,
	}, nil
}

// Table returns the validated, deduplicated raw table.
func (p *Preprocessor) Table() *table.Table { return p.tbl }

// IDColumn returns the identifier column.
func (p *Preprocessor) IDColumn() string { return p.idColumn }

// Columns returns the resolved attribute columns.
func (p *Preprocessor) Columns() []string { return slices.Clone(p.columns) }

// Run applies every stage and returns the one-hot feature table: the id
// column followed by one int column per (attribute, label) pair.
func (p *Preprocessor) Run() (*table.Table, error) {
	t, err := Select(p.tbl, p.idColumn, p.columns)
	if err != nil {
		return nil, err
	}

	stages := []struct {
		name string
		fn   func(*table.Table) (*table.Table, error)
	}{
		{"rectify_countries", func(t *table.Table) (*table.Table, error) { return RectifyCountries(t, p.columns) }},
		{"replace_whitespace", func(t *table.Table) (*table.Table, error) { return ReplaceWhitespace(t, p.idColumn) }},
		{"lowercase", func(t *table.Table) (*table.Table, error) { return Lowercase(t, p.idColumn) }},
		{"convert_na", func(t *table.Table) (*table.Table, error) { return ConvertNA(t, p.idColumn) }},
		{"convert_prep_time", func(t *table.Table) (*table.Table, error) { return ConvertPrepTime(t, p.columns) }},
		{"one_hot", func(t *table.Table) (*table.Table, error) { return OneHot(t, p.columns) }},
	}
	for _, s := range stages {
		if t, err = s.fn(t); err != nil {
			return nil, fmt.Errorf("preprocess %s: %w", s.name, err)
		}
	}

	p.logger.Debug("preprocess completed",
		"rows", t.NumRows(),
		"attributes", len(p.columns),
		"features", t.NumCols()-1,
	)
	return t, nil
}

// Dedupe keeps one uniformly random row per id. Ids keep the order of their
// first appearance.
func Dedupe(t *table.Table, idColumn string, r *rand.Rand) (*table.Table, error) {
	idCol, ok := t.Column(idColumn)
	if !ok {
		return nil, fmt.Errorf("%w: %q", table.ErrColumnNotFound, idColumn)
	}

	var order []string
	groups := make(map[string][]int)
	for i := range idCol.Len() {
		id := idCol.Text(i)
		if _, seen := groups[id]; !seen {
			order = append(order, id)
		}
		groups[id] = append(groups[id], i)
	}
	if len(order) == t.NumRows() {
		return t, nil
	}

	rows := make([]int, len(order))
	for k, id := range order {
		g := groups[id]
		rows[k] = g[r.IntN(len(g))]
	}
	return t.Take(rows)
}

// Select keeps the id column followed by columns.
func Select(t *table.Table, idColumn string, columns []string) (*table.Table, error) {
	return t.Select(append([]string{idColumn}, columns...)...)
}

var countryRewrites = []struct{ from, to string }{
	{"United States of America (USA)", "United States"},
	{"Israel and the Occupied Territories", "Israel"},
	{"Korea, Republic of (South Korea)", "South Korea"},
	// Maps to South Korea, not North Korea. Downstream label sets depend on it.
	{"Korea, Democratic Republic of (North Korea)", "South Korea"},
	{"Great Britain", "United Kingdom"},
}

// RectifyCountries rewrites inconsistent country labels in every column of
// columns whose name contains "country".
func RectifyCountries(t *table.Table, columns []string) (*table.Table, error) {
	var targets []string
	for _, c := range columns {
		if strings.Contains(c, "country") {
			targets = append(targets, c)
		}
	}
	return mapColumns(t, targets, func(v string) string {
		for _, rw := range countryRewrites {
			v = strings.ReplaceAll(v, rw.from, rw.to)
		}
		return v
	})
}

// ReplaceWhitespace replaces spaces with underscores in every non-id column.
func ReplaceWhitespace(t *table.Table, idColumn string) (*table.Table, error) {
	return mapColumns(t, attributes(t, idColumn), func(v string) string {
		return strings.ReplaceAll(v, " ", "_")
	})
}

// Lowercase lowercases every non-id column.
func Lowercase(t *table.Table, idColumn string) (*table.Table, error) {
	return mapColumns(t, attributes(t, idColumn), strings.ToLower)
}

// ConvertNA replaces "#n/a" with "<column>_not_applicable" in every non-id
// column.
func ConvertNA(t *table.Table, idColumn string) (*table.Table, error) {
	out := t
	for _, name := range attributes(t, idColumn) {
		repl := name + "_not_applicable"
		var err error
		out, err = mapColumns(out, []string{name}, func(v string) string {
			return strings.ReplaceAll(v, "#n/a", repl)
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ConvertPrepTime maps prep_time ranges "a-b" to their upper bound "b".
// It is a no-op unless prep_time is one of columns.
func ConvertPrepTime(t *table.Table, columns []string) (*table.Table, error) {
	if !slices.Contains(columns, PrepTimeColumn) {
		return t, nil
	}
	return mapColumns(t, []string{PrepTimeColumn}, func(v string) string {
		return v[strings.LastIndex(v, "-")+1:]
	})
}

// OneHot replaces each of columns with one int column per distinct label,
// named "<column>_<label>", holding 1 where the row has that label and 0
// otherwise. Labels are sorted. Null cells match no label.
func OneHot(t *table.Table, columns []string) (*table.Table, error) {
	out := t
	for _, name := range columns {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", table.ErrColumnNotFound, name)
		}
		c = c.AsString()

		var labels []string
		for i := range c.Len() {
			if !c.IsNull(i) {
				labels = append(labels, c.Text(i))
			}
		}
		slices.Sort(labels)
		labels = slices.Compact(labels)

		out = out.Drop(name)
		for _, label := range labels {
			vals := make([]int64, c.Len())
			for i := range vals {
				if !c.IsNull(i) && c.Text(i) == label {
					vals[i] = 1
				}
			}
			var err error
			if out, err = out.With(table.Int(name+"_"+label, vals...)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func attributes(t *table.Table, idColumn string) []string {
	return slices.DeleteFunc(t.Names(), func(n string) bool { return n == idColumn })
}

func mapColumns(t *table.Table, names []string, fn func(string) string) (*table.Table, error) {
	out := t
	for _, name := range names {
		c, ok := out.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", table.ErrColumnNotFound, name)
		}
		var err error
		if out, err = out.With(c.MapStrings(fn)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
