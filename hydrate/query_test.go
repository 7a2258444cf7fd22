package hydrate

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestQuerySelectBasic(t *testing.T) {
	m := testMapper(t)
	sql, args, err := m.NewQuery(&hUser{}).Filter("email", "a@example.com").SelectSQL()
	if err != nil {
		t.Fatal(err)
	}
	want := "SELECT `users`.* FROM `users` WHERE `users`.`email` = ?"
	if sql != want {
		t.Errorf("got %q, want %q", sql, want)
	}
	if len(args) != 1 || args[0] != "a@example.com" {
		t.Errorf("unexpected args %v", args)
	}
}

func TestQueryValueShapes(t *testing.T) {
	m := testMapper(t)

	sql, args, err := m.NewQuery(&hUser{}).Filter("email", nil).SelectSQL()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "`users`.`email` IS NULL") || len(args) != 0 {
		t.Errorf("nil should render IS NULL with no args: %q %v", sql, args)
	}

	sql, args, err = m.NewQuery(&hUser{}).Filter("email", []string{"a", "b", "c"}).SelectSQL()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "`users`.`email` IN (?,?,?)") || len(args) != 3 {
		t.Errorf("slice should render IN: %q %v", sql, args)
	}
}

func TestQueryFilterOp(t *testing.T) {
	m := testMapper(t)
	sql, _, err := m.NewQuery(&hOrder{}).FilterOp("userId", ">=", 5).SelectSQL()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "`orders`.`user_id` >= ?") {
		t.Errorf("unexpected SQL %q", sql)
	}

	_, _, err = m.NewQuery(&hOrder{}).FilterOp("userId", "BETWEEN", 5).SelectSQL()
	var bad *BadQueryError
	if !errors.As(err, &bad) {
		t.Errorf("unknown operator should fail with BadQueryError, got %v", err)
	}
}

func TestQueryNotFilterable(t *testing.T) {
	m := testMapper(t)
	_, _, err := m.NewQuery(&hUser{}).Filter("bio", "x").SelectSQL()
	var nf *NotFilterableError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFilterableError, got %v", err)
	}
	if nf.Property != "bio" {
		t.Errorf("error should name the property, got %+v", nf)
	}
}

func TestQueryStickyError(t *testing.T) {
	m := testMapper(t)
	q := m.NewQuery(&hUser{}).Filter("bio", "x").Filter("email", "a@example.com").Page(1, 10)
	_, _, err := q.SelectSQL()
	var nf *NotFilterableError
	if !errors.As(err, &nf) {
		t.Errorf("the first failure must survive later chained calls, got %v", err)
	}
}

func TestQueryRelationJoinDedup(t *testing.T) {
	m := testMapper(t)
	sql, args, err := m.NewQuery(&hOrder{}).
		FilterRelation("User", "email", "a@example.com").
		FilterRelation("User", "active", true).
		SelectSQL()
	if err != nil {
		t.Fatal(err)
	}
	join := "JOIN `users` ON `orders`.`user_id` = `users`.`id`"
	if strings.Count(sql, join) != 1 {
		t.Errorf("repeated filters on one relation must share one join:\n%s", sql)
	}
	if !strings.Contains(sql, "`users`.`email` = ?") || !strings.Contains(sql, "`users`.`active` = ?") {
		t.Errorf("both conditions must survive: %q", sql)
	}
	if len(args) != 2 {
		t.Errorf("unexpected args %v", args)
	}
}

func TestQueryManyToManyJoinsThroughPivot(t *testing.T) {
	m := testMapper(t)
	sql, _, err := m.NewQuery(&hOrder{}).FilterRelation("Tags", "name", "rush").SelectSQL()
	if err != nil {
		t.Fatal(err)
	}
	for _, fragment := range []string{
		"JOIN `order_tag` ON `order_tag`.`order_id` = `orders`.`id`",
		"JOIN `tags` ON `tags`.`id` = `order_tag`.`tag_id`",
		"`tags`.`name` = ?",
	} {
		if !strings.Contains(sql, fragment) {
			t.Errorf("missing %q in:\n%s", fragment, sql)
		}
	}
}

func TestQueryUnknownRelation(t *testing.T) {
	m := testMapper(t)
	_, _, err := m.NewQuery(&hOrder{}).FilterRelation("Payments", "state", "ok").SelectSQL()
	var ur *UnknownRelationError
	if !errors.As(err, &ur) {
		t.Errorf("expected UnknownRelationError, got %v", err)
	}
}

func TestQueryPaging(t *testing.T) {
	m := testMapper(t)
	sql, _, err := m.NewQuery(&hUser{}).Filter("email", "a").Page(3, 25).SelectSQL()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(sql, "LIMIT 25 OFFSET 50") {
		t.Errorf("unexpected paging clause: %q", sql)
	}

	_, _, err = m.NewQuery(&hUser{}).Page(0, 25).SelectSQL()
	var bad *BadQueryError
	if !errors.As(err, &bad) {
		t.Errorf("page below 1 should fail with BadQueryError, got %v", err)
	}
}

func TestQueryDeleteGuards(t *testing.T) {
	m := testMapper(t)

	_, _, err := m.NewQuery(&hUser{}).DeleteSQL()
	var bad *BadQueryError
	if !errors.As(err, &bad) {
		t.Error("an unconditional DELETE must be refused")
	}

	_, _, err = m.NewQuery(&hOrder{}).FilterRelation("User", "email", "a").DeleteSQL()
	if !errors.As(err, &bad) {
		t.Error("DELETE with relation joins must be refused")
	}

	sql, args, err := m.NewQuery(&hUser{}).Filter("email", "a@example.com").DeleteSQL()
	if err != nil {
		t.Fatal(err)
	}
	want := "DELETE FROM `users` WHERE `users`.`email` = ?"
	if sql != want || len(args) != 1 {
		t.Errorf("got %q %v", sql, args)
	}
}

func TestQueryAllHydratesRows(t *testing.T) {
	m := testMapper(t)
	exec := &fakeExecutor{results: map[string][]map[string]any{
		"FROM `users`": {
			{"id": int64(1), "email": []byte("a@example.com"), "active": int64(1)},
			{"id": int64(2), "email": []byte("b@example.com"), "active": int64(0)},
		},
	}}
	resources, err := m.NewQuery(&hUser{}).Filter("active", true).All(context.Background(), exec)
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(resources))
	}
	first, ok := resources[0].(*hUser)
	if !ok {
		t.Fatalf("All should return resource pointers, got %T", resources[0])
	}
	if first.ID != 1 || first.Email != "a@example.com" || !first.Active {
		t.Errorf("row not hydrated: %+v", first)
	}
}
