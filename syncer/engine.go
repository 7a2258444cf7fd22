package syncer

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/semitexa/orm/dbconn"
)

// Engine executes a plan against the live database. When the server supports
// atomic DDL the whole plan runs inside one transaction; otherwise statements
// run one at a time with no rollback on failure.
type Engine struct {
	Executor dbconn.Executor
	Tx       *dbconn.TxManager
	Flavor   dbconn.Flavor

	// AllowDestructive enables destructive operations. When false they are
	// silently omitted from execution, never failed on.
	AllowDestructive bool

	// RequireTransactional fails execution with a CapabilityError instead of
	// degrading to statement-at-a-time mode on pre-atomic-DDL servers.
	RequireTransactional bool

	// HistoryDir is where the audit trail is written after a successful run.
	// Empty disables the audit trail.
	HistoryDir string
}

// Report summarizes one execution: what ran, what was skipped, and how far a
// non-transactional run got before failing.
type Report struct {
	Applied     []Operation
	Skipped     []Operation
	Transaction bool
	DryRun      bool
	HistoryJSON string
	HistorySQL  string
}

// Select splits the plan into the operations to run and the destructive ones
// being withheld.
func (e *Engine) Select(plan *Plan) (run, skipped []Operation) {
	for _, op := range plan.Operations {
		if op.Destructive && !e.AllowDestructive {
			skipped = append(skipped, op)
			continue
		}
		run = append(run, op)
	}
	return run, skipped
}

// DryRun reports what Execute would do without touching the database or the
// audit trail.
func (e *Engine) DryRun(plan *Plan) *Report {
	run, skipped := e.Select(plan)
	return &Report{Applied: run, Skipped: skipped, Transaction: e.Flavor.AtomicDDL(), DryRun: true}
}

// Execute runs the plan. On success the audit trail is written; statements
// applied before a mid-plan failure are reported only in non-transactional
// mode, since a transactional run leaves nothing applied.
func (e *Engine) Execute(ctx context.Context, plan *Plan) (*Report, error) {
	run, skipped := e.Select(plan)
	report := &Report{Skipped: skipped, Transaction: e.Flavor.AtomicDDL()}
	for _, op := range skipped {
		log.Warnf("skipping destructive operation (re-run with destructive operations allowed): %s", op.Description)
	}
	if len(run) == 0 {
		return report, nil
	}

	if !e.Flavor.AtomicDDL() {
		if e.RequireTransactional {
			return report, &dbconn.CapabilityError{Capability: "atomic DDL"}
		}
		report.Transaction = false
		for _, op := range run {
			log.Infof("applying: %s", op.Description)
			if _, err := e.Executor.Exec(ctx, op.SQL); err != nil {
				return report, err
			}
			report.Applied = append(report.Applied, op)
		}
	} else {
		err := e.Tx.Run(ctx, func(tx *dbconn.Tx) error {
			for _, op := range run {
				log.Infof("applying: %s", op.Description)
				if _, err := tx.Exec(ctx, op.SQL); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return report, err
		}
		report.Applied = run
	}

	if e.HistoryDir != "" {
		jsonPath, sqlPath, err := WriteHistory(e.HistoryDir, time.Now(), report.Applied)
		if err != nil {
			// The schema change itself succeeded; a failed audit write is
			// logged, not fatal.
			log.Errorf("sync applied but audit trail write failed: %s", err)
		} else {
			report.HistoryJSON = jsonPath
			report.HistorySQL = sqlPath
		}
	}
	return report, nil
}
