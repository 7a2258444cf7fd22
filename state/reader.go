package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

/*
	information_schema column names come back in all caps from MySQL 8.0
	queries, so every query below uses explicit AS clauses to keep sqlx
	struct scanning working on lowercase db tags.
*/

// Read takes the live schema snapshot for one database. The database name is
// the only bound parameter in every query. Tables in the ignore set are
// excluded entirely: invisible to diffing, untouchable by sync.
func Read(ctx context.Context, db sqlx.QueryerContext, database string, ignore map[string]bool) (*State, error) {
	tables, err := queryTables(ctx, db, database)
	if err != nil {
		return nil, err
	}

	var columnsByTable map[string][]*Column
	var indexesByTable map[string][]*Index
	var fksByTable map[string][]*ForeignKey

	g, subCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		columnsByTable, err = queryColumns(subCtx, db, database)
		return err
	})
	g.Go(func() (err error) {
		indexesByTable, err = queryIndexes(subCtx, db, database)
		return err
	})
	g.Go(func() (err error) {
		fksByTable, err = queryForeignKeys(subCtx, db, database)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &State{Tables: make([]*Table, 0, len(tables))}
	for _, t := range tables {
		if ignore[t.Name] {
			continue
		}
		t.Columns = columnsByTable[t.Name]
		t.Indexes = indexesByTable[t.Name]
		t.ForeignKeys = fksByTable[t.Name]
		result.Tables = append(result.Tables, t)
	}
	return result, nil
}

func queryTables(ctx context.Context, db sqlx.QueryerContext, database string) ([]*Table, error) {
	var rawTables []struct {
		Name    string `db:"table_name"`
		Comment string `db:"table_comment"`
	}
	query := `
		SELECT   t.table_name AS table_name, t.table_comment AS table_comment
		FROM     information_schema.tables t
		WHERE    t.table_schema = ?
		AND      t.table_type = 'BASE TABLE'`
	if err := sqlx.SelectContext(ctx, db, &rawTables, query, database); err != nil {
		return nil, fmt.Errorf("error querying information_schema.tables for %s: %s", database, err)
	}
	tables := make([]*Table, len(rawTables))
	for n, raw := range rawTables {
		tables[n] = &Table{Name: raw.Name, Comment: raw.Comment}
	}
	return tables, nil
}

func queryColumns(ctx context.Context, db sqlx.QueryerContext, database string) (map[string][]*Column, error) {
	var rawColumns []struct {
		TableName     string         `db:"table_name"`
		Name          string         `db:"column_name"`
		ColumnType    string         `db:"column_type"`
		IsNullable    string         `db:"is_nullable"`
		Default       sql.NullString `db:"column_default"`
		ColumnKey     string         `db:"column_key"`
		Extra         string         `db:"extra"`
		DataType      string         `db:"data_type"`
		CharMaxLength sql.NullInt64  `db:"character_maximum_length"`
		Precision     sql.NullInt64  `db:"numeric_precision"`
		Scale         sql.NullInt64  `db:"numeric_scale"`
		Comment       string         `db:"column_comment"`
	}
	query := `
		SELECT   c.table_name AS table_name, c.column_name AS column_name,
		         c.column_type AS column_type, c.is_nullable AS is_nullable,
		         c.column_default AS column_default, c.column_key AS column_key,
		         c.extra AS extra, c.data_type AS data_type,
		         c.character_maximum_length AS character_maximum_length,
		         c.numeric_precision AS numeric_precision,
		         c.numeric_scale AS numeric_scale,
		         c.column_comment AS column_comment
		FROM     information_schema.columns c
		WHERE    c.table_schema = ?
		ORDER BY c.table_name, c.ordinal_position`
	if err := sqlx.SelectContext(ctx, db, &rawColumns, query, database); err != nil {
		return nil, fmt.Errorf("error querying information_schema.columns for %s: %s", database, err)
	}
	columnsByTable := make(map[string][]*Column)
	for _, raw := range rawColumns {
		col := &Column{
			Name:          raw.Name,
			ColumnType:    strings.ToLower(raw.ColumnType),
			DataType:      strings.ToLower(raw.DataType),
			Nullable:      strings.EqualFold(raw.IsNullable, "YES"),
			Default:       raw.Default,
			AutoIncrement: strings.Contains(raw.Extra, "auto_increment"),
			PrimaryKey:    raw.ColumnKey == "PRI",
			CharMaxLength: raw.CharMaxLength,
			Precision:     raw.Precision,
			Scale:         raw.Scale,
			Comment:       raw.Comment,
		}
		columnsByTable[raw.TableName] = append(columnsByTable[raw.TableName], col)
	}
	return columnsByTable, nil
}

func queryIndexes(ctx context.Context, db sqlx.QueryerContext, database string) (map[string][]*Index, error) {
	var rawIndexes []struct {
		TableName  string `db:"table_name"`
		Name       string `db:"index_name"`
		ColumnName string `db:"column_name"`
		NonUnique  uint8  `db:"non_unique"`
		SeqInIndex uint8  `db:"seq_in_index"`
	}
	query := `
		SELECT   s.table_name AS table_name, s.index_name AS index_name,
		         s.column_name AS column_name, s.non_unique AS non_unique,
		         s.seq_in_index AS seq_in_index
		FROM     information_schema.statistics s
		WHERE    s.table_schema = ?
		ORDER BY s.table_name, s.index_name, s.seq_in_index`
	if err := sqlx.SelectContext(ctx, db, &rawIndexes, query, database); err != nil {
		return nil, fmt.Errorf("error querying information_schema.statistics for %s: %s", database, err)
	}
	indexesByTable := make(map[string][]*Index)
	byTableAndName := make(map[string]*Index)
	for _, raw := range rawIndexes {
		// The PRIMARY index is covered by the column PK flag.
		if strings.EqualFold(raw.Name, "PRIMARY") {
			continue
		}
		key := raw.TableName + "." + raw.Name
		idx, ok := byTableAndName[key]
		if !ok {
			idx = &Index{Name: raw.Name, Unique: raw.NonUnique == 0}
			byTableAndName[key] = idx
			indexesByTable[raw.TableName] = append(indexesByTable[raw.TableName], idx)
		}
		idx.Columns = append(idx.Columns, raw.ColumnName)
	}
	return indexesByTable, nil
}

func queryForeignKeys(ctx context.Context, db sqlx.QueryerContext, database string) (map[string][]*ForeignKey, error) {
	var rawFKs []struct {
		Name             string `db:"constraint_name"`
		TableName        string `db:"table_name"`
		ColumnName       string `db:"column_name"`
		ReferencedTable  string `db:"referenced_table_name"`
		ReferencedColumn string `db:"referenced_column_name"`
		DeleteRule       string `db:"delete_rule"`
		UpdateRule       string `db:"update_rule"`
	}
	query := `
		SELECT   kcu.constraint_name AS constraint_name, kcu.table_name AS table_name,
		         kcu.column_name AS column_name,
		         kcu.referenced_table_name AS referenced_table_name,
		         kcu.referenced_column_name AS referenced_column_name,
		         rc.delete_rule AS delete_rule, rc.update_rule AS update_rule
		FROM     information_schema.key_column_usage kcu
		JOIN     information_schema.referential_constraints rc
		         ON  rc.constraint_schema = kcu.constraint_schema
		         AND rc.constraint_name = kcu.constraint_name
		WHERE    kcu.table_schema = ?
		AND      kcu.referenced_table_name IS NOT NULL`
	if err := sqlx.SelectContext(ctx, db, &rawFKs, query, database); err != nil {
		return nil, fmt.Errorf("error querying foreign keys for %s: %s", database, err)
	}
	fksByTable := make(map[string][]*ForeignKey)
	for _, raw := range rawFKs {
		fk := &ForeignKey{
			Name:             raw.Name,
			Table:            raw.TableName,
			Column:           raw.ColumnName,
			ReferencedTable:  raw.ReferencedTable,
			ReferencedColumn: raw.ReferencedColumn,
			DeleteRule:       raw.DeleteRule,
			UpdateRule:       raw.UpdateRule,
		}
		fksByTable[raw.TableName] = append(fksByTable[raw.TableName], fk)
	}
	return fksByTable, nil
}
