// Package cli is the presentation layer over the core: the status, diff,
// sync, and seed commands. It owns no schema logic of its own; every command
// is a thin sequence of collector, reader, comparator, and engine calls.
package cli

import (
	"context"
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/semitexa/orm/dbconn"
	"github.com/semitexa/orm/diff"
	"github.com/semitexa/orm/schema"
	"github.com/semitexa/orm/state"
	"github.com/semitexa/orm/syncer"
)

// App wires the registered resources to the database-facing components. One
// App serves one command invocation.
type App struct {
	collector *schema.Collector

	// HistoryDir receives the sync audit trail. Relative paths resolve
	// against the working directory.
	HistoryDir string

	cfg     dbconn.Config
	pool    *dbconn.Pool
	adapter *dbconn.Adapter
	txm     *dbconn.TxManager
	flavor  dbconn.Flavor
}

// New builds an App over the resources registered with the collector.
func New(collector *schema.Collector) *App {
	return &App{
		collector:  collector,
		HistoryDir: filepath.Join("var", "migrations", "history"),
	}
}

// RootCommand returns the semitexa command tree.
func (a *App) RootCommand() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "semitexa",
		Short:         "Attribute-driven MySQL schema sync and seeding",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(a.statusCommand(), a.diffCommand(), a.syncCommand(), a.seedCommand())
	return root
}

// connect loads configuration, opens the pool, and verifies the server
// version floor.
func (a *App) connect(ctx context.Context) error {
	a.cfg = dbconn.LoadConfig()
	a.pool = dbconn.NewPool(a.cfg)
	a.adapter = dbconn.NewAdapter(a.pool)
	a.txm = dbconn.NewTxManager(a.pool)

	flavor, err := dbconn.DetectFlavor(ctx, a.adapter)
	if err != nil {
		return err
	}
	a.flavor = flavor
	log.Debugf("connected to %s:%s, server version %s", a.cfg.Host, a.cfg.Port, flavor)
	return nil
}

func (a *App) close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// collect runs the collector and fails on validation errors, printing each
// one first. Warnings are logged but do not fail.
func (a *App) collect() (*schema.Result, error) {
	res := a.collector.Collect()
	for _, warning := range res.Warnings {
		log.Warn(warning)
	}
	if !res.Ok() {
		for _, verr := range res.Errors {
			log.Error(verr.Error())
		}
		return res, fmt.Errorf("schema validation failed with %d error(s)", len(res.Errors))
	}
	return res, nil
}

// readState snapshots the live schema on one pooled connection.
func (a *App) readState(ctx context.Context) (*state.State, error) {
	conn, err := a.pool.Pop(dbconn.DefaultPopTimeout)
	if err != nil {
		return nil, err
	}
	defer a.pool.Push(conn)
	return state.Read(ctx, conn.DB(), a.cfg.Database, a.cfg.IgnoreSet())
}

// buildPlan runs the full pipeline up to the execution plan: collect, read,
// compare, order.
func (a *App) buildPlan(ctx context.Context) (*schema.Result, *state.State, *syncer.Plan, error) {
	res, err := a.collect()
	if err != nil {
		return res, nil, nil, err
	}
	live, err := a.readState(ctx)
	if err != nil {
		return res, nil, nil, err
	}
	d := diff.Compare(res.Schema, live)
	return res, live, syncer.BuildPlan(d, res.Schema), nil
}

func describeOp(op syncer.Operation) string {
	marker := "safe       "
	if op.Destructive {
		marker = "DESTRUCTIVE"
	}
	return fmt.Sprintf("[%s] %s", marker, op.Description)
}
