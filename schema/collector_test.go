package schema

import (
	"strings"
	"testing"
	"time"
)

type testUser struct {
	ID     int64        `sx:"col=id,type=int,pk=auto"`
	Email  string       `sx:"col=email,type=varchar,len=255,filterable=email"`
	Name   string       `sx:"col=name,type=varchar,len=255"`
	Orders []*testOrder `sx:"rel=has_many,fk=user_id"`
}

func (testUser) TableName() string { return "users" }

func (testUser) Indexes() []IndexSpec {
	return []IndexSpec{{Columns: []string{"email"}, Unique: true}}
}

type testOrder struct {
	ID     int64      `sx:"col=id,type=int,pk=auto"`
	UserID int64      `sx:"col=user_id,type=int"`
	Status string     `sx:"col=status,type=varchar,len=32,default=pending"`
	User   *testUser  `sx:"rel=belongs_to,fk=user_id"`
	Tags   []*testTag `sx:"rel=many_to_many"`
}

func (testOrder) TableName() string { return "orders" }

type testTag struct {
	ID   int64  `sx:"col=id,type=int,pk=auto"`
	Name string `sx:"col=name,type=varchar,len=64"`
}

func (testTag) TableName() string { return "tags" }

func collectTestSchema(t *testing.T, resources ...Resource) *Result {
	t.Helper()
	res := NewCollector(resources...).Collect()
	if !res.Ok() {
		for _, e := range res.Errors {
			t.Log(e.Error())
		}
		t.Fatal("collection unexpectedly failed")
	}
	return res
}

func TestCollectBasicTable(t *testing.T) {
	res := collectTestSchema(t, &testUser{}, &testOrder{}, &testTag{})
	users := res.Schema.TablesByName()["users"]
	if users == nil {
		t.Fatal("users table not collected")
	}
	cols := users.ColumnsByName()
	if len(users.Columns) != 3 {
		t.Errorf("expected 3 columns on users, found %d", len(users.Columns))
	}
	pk := users.PrimaryKey()
	if pk == nil || pk.Name != "id" || !pk.AutoIncrement() {
		t.Errorf("unexpected primary key %+v", pk)
	}
	if email := cols["email"]; email == nil || email.Length != 255 || email.Nullable {
		t.Errorf("unexpected email column %+v", email)
	}
	if users.Filterable["email"] != "email" {
		t.Errorf("email not recorded as filterable: %v", users.Filterable)
	}
}

func TestCollectFilterableAddsIndex(t *testing.T) {
	res := collectTestSchema(t, &testUser{}, &testOrder{}, &testTag{})
	users := res.Schema.TablesByName()["users"]
	idx := users.IndexesByName()["idx_users_email"]
	if idx == nil {
		t.Fatal("filterable column did not produce idx_users_email")
	}
	if idx.Unique || len(idx.Columns) != 1 || idx.Columns[0] != "email" {
		t.Errorf("unexpected filterable index %+v", idx)
	}
	// The class-level unique index exists alongside it.
	if users.IndexesByName()["uniq_users_email"] == nil {
		t.Error("class-level unique index missing")
	}
}

func TestCollectRelationsAndForeignKeys(t *testing.T) {
	res := collectTestSchema(t, &testUser{}, &testOrder{}, &testTag{})
	orders := res.Schema.TablesByName()["orders"]

	rel := orders.Relations["User"]
	if rel == nil || rel.Kind != BelongsTo || rel.TargetTable != "users" {
		t.Fatalf("unexpected belongs_to relation %+v", rel)
	}
	fk := orders.ForeignKeysByName()["fk_orders_user_id"]
	if fk == nil {
		t.Fatal("belongs_to did not produce fk_orders_user_id")
	}
	if fk.ReferencedTable != "users" || fk.ReferencedColumn != "id" {
		t.Errorf("unexpected FK target %+v", fk)
	}
	// user_id is NOT NULL, so the default actions are RESTRICT.
	if fk.OnDelete != ActionRestrict || fk.OnUpdate != ActionRestrict {
		t.Errorf("unexpected FK actions %+v", fk)
	}
}

func TestCollectPivotSynthesis(t *testing.T) {
	res := collectTestSchema(t, &testUser{}, &testOrder{}, &testTag{})
	pivot := res.Schema.TablesByName()["order_tag"]
	if pivot == nil {
		t.Fatal("many_to_many did not synthesize order_tag")
	}
	if !pivot.Synthetic {
		t.Error("synthesized pivot not marked synthetic")
	}
	cols := pivot.ColumnsByName()
	for _, name := range []string{"id", "order_id", "tag_id"} {
		if cols[name] == nil {
			t.Errorf("pivot missing column %s", name)
		}
	}
	idx := pivot.IndexesByName()["uniq_order_tag_order_id_tag_id"]
	if idx == nil || !idx.Unique {
		t.Fatalf("pivot missing unique composite index, have %v", pivot.Indexes)
	}
	if len(pivot.ForeignKeys) != 2 {
		t.Errorf("pivot should carry exactly two FKs, found %d", len(pivot.ForeignKeys))
	}
}

func TestCreateStatement(t *testing.T) {
	res := collectTestSchema(t, &testUser{}, &testOrder{}, &testTag{})
	stmt := res.Schema.TablesByName()["users"].CreateStatement()

	for _, fragment := range []string{
		"CREATE TABLE `users` (",
		"`id` int NOT NULL AUTO_INCREMENT",
		"`email` varchar(255) NOT NULL",
		"`name` varchar(255) NOT NULL",
		"PRIMARY KEY (`id`)",
		"UNIQUE KEY `uniq_users_email` (`email`)",
	} {
		if !strings.Contains(stmt, fragment) {
			t.Errorf("CREATE TABLE missing %q:\n%s", fragment, stmt)
		}
	}
	if !strings.HasSuffix(stmt, "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci") {
		t.Errorf("CREATE TABLE has wrong suffix:\n%s", stmt)
	}
	if strings.Contains(stmt, "FOREIGN KEY") {
		t.Error("CREATE TABLE must not inline foreign keys")
	}
}

///// Validation failures /////

type badTableName struct {
	ID int64 `sx:"col=id,type=int,pk=auto"`
}

func (badTableName) TableName() string { return "users; DROP TABLE users" }

type stringAutoPK struct {
	ID string `sx:"col=id,type=varchar,pk=auto"`
}

func (stringAutoPK) TableName() string { return "bad_pk" }

type badUUIDPK struct {
	ID int64 `sx:"col=id,type=int,pk=uuid"`
}

func (badUUIDPK) TableName() string { return "bad_uuid" }

type incompatibleType struct {
	ID   int64 `sx:"col=id,type=int,pk=auto"`
	Name int64 `sx:"col=name,type=varchar"`
}

func (incompatibleType) TableName() string { return "mismatch" }

type unknownTagKey struct {
	ID int64 `sx:"col=id,type=int,pk=auto,bogus=1"`
}

func (unknownTagKey) TableName() string { return "bogus_tag" }

func TestCollectValidationErrors(t *testing.T) {
	cases := []struct {
		name     string
		resource Resource
		fragment string
	}{
		{"invalid table name", &badTableName{}, "invalid table name"},
		{"string pk with auto strategy", &stringAutoPK{}, "pk strategy auto requires an integer column"},
		{"uuid pk on integer column", &badUUIDPK{}, "pk strategy uuid requires a binary or varchar column"},
		{"incompatible source type", &incompatibleType{}, "not compatible"},
		{"unknown tag key", &unknownTagKey{}, "unknown tag key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := NewCollector(tc.resource).Collect()
			if res.Ok() {
				t.Fatal("expected a validation error")
			}
			var found bool
			for _, e := range res.Errors {
				if strings.Contains(e.Error(), tc.fragment) {
					found = true
				}
			}
			if !found {
				t.Errorf("no error containing %q in %v", tc.fragment, res.Errors)
			}
		})
	}
}

///// Mixins and capabilities /////

type timestampsMixin struct {
	CreatedAt *time.Time `sx:"col=created_at,type=datetime"`
	UpdatedAt *time.Time `sx:"col=updated_at,type=datetime"`
}

type withMixin struct {
	timestampsMixin
	ID        int64      `sx:"col=id,type=int,pk=auto"`
	CreatedAt *time.Time `sx:"col=created_at,type=timestamp"` // duplicate, ignored
}

func (withMixin) TableName() string { return "audited" }

func TestCollectMixinDedupe(t *testing.T) {
	res := collectTestSchema(t, &withMixin{})
	table := res.Schema.TablesByName()["audited"]
	cols := table.ColumnsByName()
	created := cols["created_at"]
	if created == nil {
		t.Fatal("mixin column not collected")
	}
	// First declaration wins: the mixin's datetime, not the redeclared
	// timestamp.
	if created.Type != TypeDateTime {
		t.Errorf("duplicate column was not ignored; type is %s", created.Type)
	}
	if !created.Nullable {
		t.Error("pointer-typed mixin column should infer nullable")
	}
}

type tenantResource struct {
	ID int64 `sx:"col=id,type=int,pk=auto"`
}

func (tenantResource) TableName() string      { return "tenanted" }
func (tenantResource) TenantStrategy() string { return "same_storage" }

func TestCollectTenantScoped(t *testing.T) {
	res := collectTestSchema(t, &tenantResource{})
	col := res.Schema.TablesByName()["tenanted"].ColumnsByName()["tenant_id"]
	if col == nil {
		t.Fatal("tenant_id not synthesized")
	}
	if col.Type != TypeVarchar || col.Length != 64 || col.Nullable {
		t.Errorf("unexpected tenant_id column %+v", col)
	}
}

type noPK struct {
	Name string `sx:"col=name,type=varchar"`
}

func (noPK) TableName() string { return "nopk" }

func TestCollectMissingPKIsWarning(t *testing.T) {
	res := NewCollector(&noPK{}).Collect()
	if !res.Ok() {
		t.Fatalf("missing PK should warn, not error: %v", res.Errors)
	}
	var found bool
	for _, w := range res.Warnings {
		if strings.Contains(w, "no primary key") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a no-primary-key warning, got %v", res.Warnings)
	}
}
