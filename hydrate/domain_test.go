package hydrate

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/semitexa/orm/dbconn"
)

type accountDomain struct {
	Email string
}

type hAccount struct {
	ID    int64  `sx:"col=id,type=int,pk=auto"`
	Email string `sx:"col=email,type=varchar,len=255"`
}

func (hAccount) TableName() string { return "accounts" }

func (a *hAccount) ToDomain() any { return &accountDomain{Email: a.Email} }

func TestToDomain(t *testing.T) {
	converted := ToDomain(&hAccount{ID: 1, Email: "a@example.com"})
	domain, ok := converted.(*accountDomain)
	if !ok || domain.Email != "a@example.com" {
		t.Errorf("unexpected conversion result %#v", converted)
	}

	// A resource without the capability passes through untouched.
	plain := &hTag{ID: 1, Name: "rush"}
	if ToDomain(plain) != any(plain) {
		t.Error("resources without ToDomain must pass through")
	}

	batch := ToDomainAll([]any{&hAccount{Email: "a"}, &hAccount{Email: "b"}})
	if len(batch) != 2 || batch[1].(*accountDomain).Email != "b" {
		t.Errorf("unexpected batch conversion %#v", batch)
	}
}

func syncPivotFixture(t *testing.T) (*Loader, *dbconn.TxManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	pool := dbconn.NewPoolWithOpener(1, func() (*dbconn.Conn, error) {
		return dbconn.WrapConn(sqlx.NewDb(db, "sqlmock")), nil
	})
	t.Cleanup(pool.Close)
	return NewLoader(testMapper(t), dbconn.NewAdapter(pool)), dbconn.NewTxManager(pool), mock
}

func TestSyncPivotReplacesLinks(t *testing.T) {
	loader, tm, mock := syncPivotFixture(t)
	mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `order_tag` WHERE `order_id` = ?").
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO `order_tag`").
		WithArgs(int64(10), int64(5), int64(10), int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	err := loader.SyncPivot(context.Background(), tm, &hOrder{ID: 10}, "Tags", []any{int64(5), int64(6)})
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSyncPivotEmptySetOnlyDeletes(t *testing.T) {
	loader, tm, mock := syncPivotFixture(t)
	mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `order_tag`").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	err := loader.SyncPivot(context.Background(), tm, &hOrder{ID: 10}, "Tags", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSyncPivotGuards(t *testing.T) {
	loader, tm, mock := syncPivotFixture(t)
	// Both guard failures still open and roll back a transaction.
	for i := 0; i < 2; i++ {
		mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("ROLLBACK").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	err := loader.SyncPivot(context.Background(), tm, &hOrder{ID: 10}, "User", []any{int64(1)})
	var unknown *UnknownRelationError
	if !errors.As(err, &unknown) {
		t.Errorf("a non many-to-many relation must be rejected, got %v", err)
	}

	err = loader.SyncPivot(context.Background(), tm, &hOrder{}, "Tags", []any{int64(1)})
	var bad *BadQueryError
	if !errors.As(err, &bad) {
		t.Errorf("an unsaved parent must be rejected, got %v", err)
	}
}
