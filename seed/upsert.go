// Package seed provides the concurrency-safe upsert and the seed runner that
// feeds it from resource-declared default rows.
package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/semitexa/orm/dbconn"
	"github.com/semitexa/orm/hydrate"
	"github.com/semitexa/orm/schema"
)

// Counts reports the outcome of one upsert batch, derived from the server's
// affected-row arithmetic.
type Counts struct {
	Inserted  int
	Updated   int
	Unchanged int
}

// Total returns the number of supplied rows the counts account for.
func (c Counts) Total() int {
	return c.Inserted + c.Updated + c.Unchanged
}

// Upserter writes batches of resources with a single atomic statement per
// batch. There is deliberately no SELECT probe: the single INSERT ... ON
// DUPLICATE KEY UPDATE closes the check-then-act race two concurrent seeders
// would otherwise hit.
type Upserter struct {
	mapper *hydrate.Mapper
	exec   dbconn.Executor
}

// NewUpserter builds an Upserter over the mapper and executor.
func NewUpserter(mapper *hydrate.Mapper, exec dbconn.Executor) *Upserter {
	return &Upserter{mapper: mapper, exec: exec}
}

// Upsert writes a homogeneous batch in one statement and interprets the
// affected-row count by MySQL's convention: +1 per inserted row, +2 per
// updated row, +0 per unchanged row.
func (u *Upserter) Upsert(ctx context.Context, resources []any) (Counts, error) {
	if len(resources) == 0 {
		return Counts{}, nil
	}
	meta, err := u.mapper.Metadata(resources[0])
	if err != nil {
		return Counts{}, err
	}

	rows := make([]map[string]any, len(resources))
	for i, r := range resources {
		if rows[i], err = u.mapper.Dehydrate(r); err != nil {
			return Counts{}, err
		}
	}

	// Column order follows the table declaration, restricted to columns any
	// row actually carries. A row missing one of them contributes NULL.
	var columns []string
	for _, col := range meta.Table.Columns {
		for _, row := range rows {
			if _, present := row[col.Name]; present {
				columns = append(columns, col.Name)
				break
			}
		}
	}
	if len(columns) == 0 {
		return Counts{}, fmt.Errorf("upsert into %s: no dehydratable columns", meta.Table.Name)
	}

	escaped := make([]string, len(columns))
	for i, c := range columns {
		escaped[i] = schema.EscapeIdentifier(c)
	}
	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	values := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		values[i] = rowPlaceholder
		for _, c := range columns {
			args = append(args, row[c])
		}
	}

	var updates []string
	pkName := ""
	if meta.PK != nil {
		pkName = meta.PK.Name
	}
	for _, c := range columns {
		if c == pkName {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", schema.EscapeIdentifier(c), schema.EscapeIdentifier(c)))
	}
	if len(updates) == 0 {
		// A PK-only table still needs a no-op assignment for the statement to
		// be valid.
		updates = append(updates, fmt.Sprintf("%s = %s", schema.EscapeIdentifier(pkName), schema.EscapeIdentifier(pkName)))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON DUPLICATE KEY UPDATE %s",
		schema.EscapeIdentifier(meta.Table.Name),
		strings.Join(escaped, ", "),
		strings.Join(values, ", "),
		strings.Join(updates, ", "))

	result, err := u.exec.Exec(ctx, query, args...)
	if err != nil {
		return Counts{}, err
	}
	return interpretAffected(len(rows), result.AffectedRows), nil
}

// interpretAffected decodes MySQL's +1/+2/+0 affected-row convention for
// INSERT ... ON DUPLICATE KEY UPDATE into per-row counts.
func interpretAffected(supplied int, affected int64) Counts {
	updated := int(affected) - supplied
	if updated < 0 {
		updated = 0
	}
	inserted := int(affected) - 2*updated
	if inserted < 0 {
		inserted = 0
	}
	return Counts{
		Inserted:  inserted,
		Updated:   updated,
		Unchanged: supplied - inserted - updated,
	}
}
