package hydrate

import (
	"context"
	"strings"
	"testing"
)

func TestLoadHasManyBatchesIntoOneQuery(t *testing.T) {
	m := testMapper(t)
	exec := &fakeExecutor{results: map[string][]map[string]any{
		"FROM `orders`": {
			{"id": int64(10), "user_id": int64(1), "status": []byte("pending")},
			{"id": int64(11), "user_id": int64(1), "status": []byte("paid")},
			{"id": int64(12), "user_id": int64(2), "status": []byte("pending")},
		},
	}}
	users := []*hUser{{ID: 1}, {ID: 2}, {ID: 3}}

	err := NewLoader(m, exec).LoadRelations(context.Background(), users, []string{"Orders"})
	if err != nil {
		t.Fatal(err)
	}
	if len(exec.queries) != 1 {
		t.Fatalf("has_many must cost exactly one query, ran %d: %v", len(exec.queries), exec.queries)
	}
	if !strings.Contains(exec.queries[0], "FROM `orders` WHERE `user_id` IN (?,?,?)") {
		t.Errorf("unexpected query %q", exec.queries[0])
	}
	if len(users[0].Orders) != 2 || len(users[1].Orders) != 1 {
		t.Errorf("rows grouped wrong: %d / %d", len(users[0].Orders), len(users[1].Orders))
	}
	if users[0].Orders[1].Status != "paid" {
		t.Errorf("loaded order not hydrated: %+v", users[0].Orders[1])
	}
	// A parent with no rows gets an empty, non-nil slice: "loaded and empty"
	// is distinguishable from "never loaded".
	if users[2].Orders == nil || len(users[2].Orders) != 0 {
		t.Errorf("childless parent should get an empty slice, got %v", users[2].Orders)
	}
}

func TestLoadBelongsTo(t *testing.T) {
	m := testMapper(t)
	exec := &fakeExecutor{results: map[string][]map[string]any{
		"FROM `users`": {
			{"id": int64(1), "email": []byte("a@example.com")},
		},
	}}
	orders := []*hOrder{{ID: 10, UserID: 1}, {ID: 11, UserID: 1}, {ID: 12}}

	err := NewLoader(m, exec).LoadRelations(context.Background(), orders, []string{"User"})
	if err != nil {
		t.Fatal(err)
	}
	if len(exec.queries) != 1 {
		t.Fatalf("belongs_to must cost exactly one query, ran %d", len(exec.queries))
	}
	if !strings.Contains(exec.queries[0], "FROM `users` WHERE `id` IN (?)") {
		t.Errorf("duplicate foreign keys must be deduplicated: %q", exec.queries[0])
	}
	if orders[0].User == nil || orders[0].User.Email != "a@example.com" {
		t.Errorf("parent not assigned: %+v", orders[0].User)
	}
	if orders[0].User != orders[1].User {
		t.Error("orders sharing a foreign key should share the loaded instance")
	}
	if orders[2].User != nil {
		t.Error("a zero foreign key is uninitialized and must stay unloaded")
	}
}

func TestLoadOneToOne(t *testing.T) {
	m := testMapper(t)
	exec := &fakeExecutor{results: map[string][]map[string]any{
		"FROM `profiles`": {
			{"id": int64(100), "user_id": int64(1), "nick": []byte("ada")},
		},
	}}
	users := []*hUser{{ID: 1}, {ID: 2}}

	err := NewLoader(m, exec).LoadRelations(context.Background(), users, []string{"Profile"})
	if err != nil {
		t.Fatal(err)
	}
	if users[0].Profile == nil || users[0].Profile.Nick != "ada" {
		t.Errorf("one_to_one not assigned: %+v", users[0].Profile)
	}
	if users[1].Profile != nil {
		t.Error("user without a profile must keep a nil field")
	}
}

func TestLoadManyToManyCostsTwoQueries(t *testing.T) {
	m := testMapper(t)
	exec := &fakeExecutor{results: map[string][]map[string]any{
		"FROM `order_tag`": {
			{"order_id": int64(10), "tag_id": int64(5)},
			{"order_id": int64(10), "tag_id": int64(6)},
			{"order_id": int64(11), "tag_id": int64(5)},
		},
		"FROM `tags`": {
			{"id": int64(5), "name": []byte("rush")},
			{"id": int64(6), "name": []byte("gift")},
		},
	}}
	orders := []*hOrder{{ID: 10}, {ID: 11}, {ID: 12}}

	err := NewLoader(m, exec).LoadRelations(context.Background(), orders, []string{"Tags"})
	if err != nil {
		t.Fatal(err)
	}
	if len(exec.queries) != 2 {
		t.Fatalf("many_to_many must cost exactly two queries, ran %d: %v", len(exec.queries), exec.queries)
	}
	if !strings.Contains(exec.queries[0], "SELECT `order_id`, `tag_id` FROM `order_tag` WHERE `order_id` IN (?,?,?)") {
		t.Errorf("unexpected pivot query %q", exec.queries[0])
	}
	if !strings.Contains(exec.queries[1], "FROM `tags` WHERE `id` IN (?,?)") {
		t.Errorf("target query must deduplicate related keys: %q", exec.queries[1])
	}
	if len(orders[0].Tags) != 2 || len(orders[1].Tags) != 1 {
		t.Errorf("pivot grouping wrong: %d / %d", len(orders[0].Tags), len(orders[1].Tags))
	}
	if orders[0].Tags[0] != orders[1].Tags[0] {
		t.Error("a shared tag should be one instance across parents")
	}
	if orders[2].Tags == nil {
		t.Error("order without tags should get an empty slice")
	}
}

func TestLoadValueSliceRelation(t *testing.T) {
	m := testMapper(t)
	exec := &fakeExecutor{results: map[string][]map[string]any{
		"FROM `order_items`": {
			{"id": int64(1), "order_id": int64(10), "quantity": int64(3)},
		},
	}}
	orders := []*hOrder{{ID: 10}}

	err := NewLoader(m, exec).LoadRelations(context.Background(), orders, []string{"Items"})
	if err != nil {
		t.Fatal(err)
	}
	if len(orders[0].Items) != 1 || orders[0].Items[0].Quantity != 3 {
		t.Errorf("value-typed slice relation not populated: %+v", orders[0].Items)
	}
}

func TestLoadRelationsEmptyBatchIsFree(t *testing.T) {
	m := testMapper(t)
	exec := &fakeExecutor{}
	if err := NewLoader(m, exec).LoadRelations(context.Background(), []*hUser{}, nil); err != nil {
		t.Fatal(err)
	}
	if len(exec.queries) != 0 {
		t.Errorf("an empty batch must issue no queries, ran %v", exec.queries)
	}
}

func TestLoadRelationsOnlySemantics(t *testing.T) {
	m := testMapper(t)
	exec := &fakeExecutor{}
	users := []*hUser{{ID: 1}}

	// An empty non-nil selection loads nothing.
	if err := NewLoader(m, exec).LoadRelations(context.Background(), users, []string{}); err != nil {
		t.Fatal(err)
	}
	if len(exec.queries) != 0 {
		t.Errorf("only=[] must load no relations, ran %v", exec.queries)
	}

	// nil loads every declared relation: Orders and Profile.
	if err := NewLoader(m, exec).LoadRelations(context.Background(), users, nil); err != nil {
		t.Fatal(err)
	}
	if len(exec.queries) != 2 {
		t.Errorf("only=nil must load all relations, ran %d: %v", len(exec.queries), exec.queries)
	}
}

func TestLoadRelationsRejectsNonSlice(t *testing.T) {
	m := testMapper(t)
	if err := NewLoader(m, &fakeExecutor{}).LoadRelations(context.Background(), &hUser{ID: 1}, nil); err == nil {
		t.Error("a bare resource pointer must be rejected")
	}
}
