package hydrate

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/semitexa/orm/dbconn"
	"github.com/semitexa/orm/schema"
)

// ToDomain converts a hydrated resource through its DomainMapper capability
// when declared; resources without one are returned as-is.
func ToDomain(resource any) any {
	if mapper, ok := resource.(schema.DomainMapper); ok {
		return mapper.ToDomain()
	}
	return resource
}

// ToDomainAll applies ToDomain across a batch.
func ToDomainAll(resources []any) []any {
	out := make([]any, len(resources))
	for i, r := range resources {
		out[i] = ToDomain(r)
	}
	return out
}

// SyncPivot replaces a resource's many-to-many links with exactly the given
// related keys. The pivot DELETE and the batch INSERT run in one transaction
// so a failure between them cannot leave the pivot empty.
func (l *Loader) SyncPivot(ctx context.Context, tm *dbconn.TxManager, resource any, relationProp string, relatedIDs []any) error {
	return tm.Run(ctx, func(tx *dbconn.Tx) error {
		return l.SyncPivotTx(ctx, tx, resource, relationProp, relatedIDs)
	})
}

// SyncPivotTx is SyncPivot running on an already-open transaction.
func (l *Loader) SyncPivotTx(ctx context.Context, tx *dbconn.Tx, resource any, relationProp string, relatedIDs []any) error {
	meta, err := l.mapper.Metadata(resource)
	if err != nil {
		return err
	}
	rel, declared := meta.Table.Relations[relationProp]
	if !declared || rel.Kind != schema.ManyToMany {
		return &UnknownRelationError{Resource: meta.Table.Name, Property: relationProp}
	}
	if meta.PK == nil {
		return &BadQueryError{Message: fmt.Sprintf("%s has no primary key", meta.Table.Name)}
	}
	parent := derefStruct(reflect.ValueOf(resource))
	pkField := parent.FieldByIndex(meta.PK.FieldIndex)
	if _, initialized := fieldKey(pkField); !initialized {
		return &BadQueryError{Message: fmt.Sprintf("cannot sync pivot for %s without a primary key value", meta.Table.Name)}
	}
	for pkField.Kind() == reflect.Ptr {
		pkField = pkField.Elem()
	}
	parentKey := pkField.Interface()

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
		schema.EscapeIdentifier(rel.PivotTable), schema.EscapeIdentifier(rel.ForeignKey))
	if _, err := tx.Exec(ctx, deleteSQL, parentKey); err != nil {
		return err
	}
	if len(relatedIDs) == 0 {
		return nil
	}

	values := make([]string, len(relatedIDs))
	args := make([]any, 0, len(relatedIDs)*2)
	for i, id := range relatedIDs {
		values[i] = "(?, ?)"
		args = append(args, parentKey, id)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES %s",
		schema.EscapeIdentifier(rel.PivotTable),
		schema.EscapeIdentifier(rel.ForeignKey),
		schema.EscapeIdentifier(rel.RelatedKey),
		strings.Join(values, ", "))
	_, err = tx.Exec(ctx, insertSQL, args...)
	return err
}
