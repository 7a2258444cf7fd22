package seed

import (
	"context"
	"sync"
	"testing"

	"github.com/semitexa/orm/dbconn"
	"github.com/semitexa/orm/hydrate"
	"github.com/semitexa/orm/schema"
)

///// Fixtures /////

type seedRole struct {
	ID   int64  `sx:"col=id,type=int,pk=manual"`
	Name string `sx:"col=name,type=varchar,len=64"`
	Rank *int64 `sx:"col=rank,type=int"`
}

func (seedRole) TableName() string { return "roles" }

func (seedRole) Defaults() []any {
	rank := int64(10)
	return []any{
		&seedRole{ID: 1, Name: "admin", Rank: &rank},
		&seedRole{ID: 2, Name: "member"},
	}
}

type seedMarker struct {
	ID int64 `sx:"col=id,type=int,pk=manual"`
}

func (seedMarker) TableName() string { return "markers" }

func (seedMarker) Defaults() []any {
	return []any{&seedMarker{ID: 1}}
}

type unseeded struct {
	ID int64 `sx:"col=id,type=int,pk=auto"`
}

func (unseeded) TableName() string { return "unseeded" }

func testMapper(t *testing.T) *hydrate.Mapper {
	t.Helper()
	res := schema.NewCollector(&seedRole{}, &seedMarker{}, &unseeded{}).Collect()
	if !res.Ok() {
		for _, e := range res.Errors {
			t.Log(e.Error())
		}
		t.Fatal("fixture schema failed to collect")
	}
	return hydrate.NewMapper(res.Schema)
}

// fakeExecutor records statements and reports a configurable affected-row
// count. Safe for the runner's concurrent upserts.
type fakeExecutor struct {
	mu       sync.Mutex
	queries  []string
	argsLog  [][]any
	affected int64
	err      error
}

func (f *fakeExecutor) Query(ctx context.Context, query string, args ...any) (*dbconn.QueryResult, error) {
	return &dbconn.QueryResult{}, nil
}

func (f *fakeExecutor) Exec(ctx context.Context, query string, args ...any) (dbconn.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.argsLog = append(f.argsLog, args)
	if f.err != nil {
		return dbconn.Result{}, f.err
	}
	return dbconn.Result{AffectedRows: f.affected}, nil
}

///// Upsert /////

func TestUpsertStatementShape(t *testing.T) {
	exec := &fakeExecutor{affected: 2}
	u := NewUpserter(testMapper(t), exec)

	_, err := u.Upsert(context.Background(), seedRole{}.Defaults())
	if err != nil {
		t.Fatal(err)
	}
	if len(exec.queries) != 1 {
		t.Fatalf("a batch must be one statement, ran %d", len(exec.queries))
	}
	want := "INSERT INTO `roles` (`id`, `name`, `rank`) VALUES (?,?,?), (?,?,?) " +
		"ON DUPLICATE KEY UPDATE `name` = VALUES(`name`), `rank` = VALUES(`rank`)"
	if exec.queries[0] != want {
		t.Errorf("got:\n%s\nwant:\n%s", exec.queries[0], want)
	}

	args := exec.argsLog[0]
	if len(args) != 6 {
		t.Fatalf("unexpected args %v", args)
	}
	if args[0] != int64(1) || args[1] != "admin" || args[2] != int64(10) {
		t.Errorf("first row args wrong: %v", args[:3])
	}
	// The second role has no rank; its slot is NULL.
	if args[5] != nil {
		t.Errorf("missing column should contribute NULL, got %v", args[5])
	}
}

func TestUpsertPKOnlyTable(t *testing.T) {
	exec := &fakeExecutor{affected: 1}
	u := NewUpserter(testMapper(t), exec)

	_, err := u.Upsert(context.Background(), seedMarker{}.Defaults())
	if err != nil {
		t.Fatal(err)
	}
	want := "INSERT INTO `markers` (`id`) VALUES (?) ON DUPLICATE KEY UPDATE `id` = `id`"
	if exec.queries[0] != want {
		t.Errorf("got:\n%s\nwant:\n%s", exec.queries[0], want)
	}
}

func TestUpsertEmptyBatch(t *testing.T) {
	exec := &fakeExecutor{}
	counts, err := NewUpserter(testMapper(t), exec).Upsert(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Total() != 0 || len(exec.queries) != 0 {
		t.Errorf("empty batch should be free, got %+v / %v", counts, exec.queries)
	}
}

func TestInterpretAffected(t *testing.T) {
	cases := []struct {
		supplied int
		affected int64
		expected Counts
	}{
		{3, 3, Counts{Inserted: 3}},                // all new
		{3, 6, Counts{Updated: 3}},                 // all changed
		{3, 0, Counts{Unchanged: 3}},               // all identical
		{3, 5, Counts{Inserted: 1, Updated: 2}},    // mixed
		{3, 4, Counts{Inserted: 2, Updated: 1}},    // mixed
		{2, 1, Counts{Inserted: 1, Unchanged: 1}},  // one new, one identical
		{4, 2, Counts{Inserted: 2, Unchanged: 2}},  // two new, two identical
	}
	for _, tc := range cases {
		actual := interpretAffected(tc.supplied, tc.affected)
		if actual != tc.expected {
			t.Errorf("interpretAffected(%d, %d) returned %+v, expected %+v",
				tc.supplied, tc.affected, actual, tc.expected)
		}
		if actual.Total() != tc.supplied {
			t.Errorf("interpretAffected(%d, %d) does not account for every row: %+v",
				tc.supplied, tc.affected, actual)
		}
	}
}

///// Runner /////

func TestRunnerSeedsEverySeeder(t *testing.T) {
	exec := &fakeExecutor{affected: 2}
	runner := NewRunner(NewUpserter(testMapper(t), exec))

	counts, err := runner.Run(context.Background(), []schema.Resource{&seedRole{}, &seedMarker{}, &unseeded{}})
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected counts for roles and markers only, got %v", counts)
	}
	if counts["roles"].Total() != 2 {
		t.Errorf("roles counts wrong: %+v", counts["roles"])
	}
	if _, present := counts["unseeded"]; present {
		t.Error("a resource without Defaults must not be seeded")
	}
}

func TestRunnerPropagatesFailure(t *testing.T) {
	exec := &fakeExecutor{err: context.DeadlineExceeded}
	runner := NewRunner(NewUpserter(testMapper(t), exec))

	_, err := runner.Run(context.Background(), []schema.Resource{&seedRole{}})
	if err == nil {
		t.Error("an upsert failure must surface from Run")
	}
}
