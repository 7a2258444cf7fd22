package seed

import (
	"context"
	"sync"

	"github.com/nozzle/throttler"
	log "github.com/sirupsen/logrus"

	"github.com/semitexa/orm/schema"
)

// DefaultConcurrency bounds how many tables seed in parallel.
const DefaultConcurrency = 4

// Runner enumerates resources exposing default rows and upserts each table's
// batch, a bounded number of tables at a time.
type Runner struct {
	upserter    *Upserter
	Concurrency int
}

// NewRunner builds a Runner over the upserter.
func NewRunner(upserter *Upserter) *Runner {
	return &Runner{upserter: upserter, Concurrency: DefaultConcurrency}
}

// Run seeds every registered resource that implements the Seeder capability
// and returns per-table counts. The first failure stops further scheduling
// and is returned; tables already seeded keep their counts.
func (r *Runner) Run(ctx context.Context, resources []schema.Resource) (map[string]Counts, error) {
	type job struct {
		table string
		rows  []any
	}
	var jobs []job
	for _, res := range resources {
		seeder, ok := res.(schema.Seeder)
		if !ok {
			continue
		}
		rows := seeder.Defaults()
		if len(rows) == 0 {
			continue
		}
		jobs = append(jobs, job{table: res.TableName(), rows: rows})
	}
	counts := make(map[string]Counts, len(jobs))
	if len(jobs) == 0 {
		return counts, nil
	}

	var mu sync.Mutex
	th := throttler.New(r.Concurrency, len(jobs))
	for _, j := range jobs {
		go func(j job) {
			c, err := r.upserter.Upsert(ctx, j.rows)
			if err == nil {
				mu.Lock()
				counts[j.table] = c
				mu.Unlock()
				log.Debugf("seeded %s: %d inserted, %d updated, %d unchanged", j.table, c.Inserted, c.Updated, c.Unchanged)
			}
			th.Done(err)
		}(j)
		if th.Throttle() > 0 {
			break
		}
	}
	if th.Err() != nil {
		return counts, th.Errs()[0]
	}
	return counts, nil
}
