package dbconn

import (
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// Conn is one pooled database connection. Each Conn owns a dedicated sqlx
// handle pinned to a single underlying connection.
type Conn struct {
	db *sqlx.DB
}

// DB exposes the sqlx handle for callers that need typed row scanning, such
// as the information_schema reader.
func (c *Conn) DB() *sqlx.DB {
	return c.db
}

// validate runs the liveness probe used before reusing an idle connection.
func (c *Conn) validate() error {
	_, err := c.db.Exec("SELECT 1")
	return err
}

func (c *Conn) close() {
	_ = c.db.Close()
}

// Pool is a fixed-upper-bound, lazily populated connection pool.
// Connections are created on first demand up to the limit; the slot counter
// is claimed with a compare-and-set so concurrent Pops cannot overshoot.
type Pool struct {
	limit   int32
	created atomic.Int32
	idle    chan *Conn
	closed  atomic.Bool
	open    func() (*Conn, error)
}

// NewPool creates a pool for the given configuration. No connections are
// opened until the first Pop.
func NewPool(cfg Config) *Pool {
	dsn := cfg.DSN()
	size := cfg.PoolSize
	if size < 1 {
		size = 1
	}
	return &Pool{
		limit: int32(size),
		idle:  make(chan *Conn, size),
		open: func() (*Conn, error) {
			db, err := sqlx.Open("mysql", dsn)
			if err != nil {
				return nil, err
			}
			db.SetMaxOpenConns(1)
			db.SetMaxIdleConns(1)
			return &Conn{db: db}, nil
		},
	}
}

// NewPoolWithOpener creates a pool whose connections come from the supplied
// opener. Used by tests to substitute mocked connections.
func NewPoolWithOpener(size int, opener func() (*Conn, error)) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		limit: int32(size),
		idle:  make(chan *Conn, size),
		open:  opener,
	}
}

// WrapConn adapts an existing sqlx handle into a pooled connection value.
// Intended for tests.
func WrapConn(db *sqlx.DB) *Conn {
	return &Conn{db: db}
}

// Size returns the pool's fixed upper bound.
func (p *Pool) Size() int {
	return int(p.limit)
}

// Available returns how many Pops could currently succeed without waiting:
// idle connections plus unclaimed slots.
func (p *Pool) Available() int {
	return len(p.idle) + int(p.limit-p.created.Load())
}

// Pop acquires a connection, waiting up to timeout when the pool is
// exhausted. Idle connections are validated with SELECT 1 and silently
// replaced when stale; the slot count is not incremented on replacement.
// On timeout, ErrPoolTimeout is returned.
func (p *Pool) Pop(timeout time.Duration) (*Conn, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	deadline := time.Now().Add(timeout)
	for {
		select {
		case c := <-p.idle:
			if fresh, err := p.revive(c); err == nil {
				return fresh, nil
			}
			continue
		default:
		}

		if p.claimSlot() {
			c, err := p.open()
			if err != nil {
				p.created.Add(-1)
				return nil, err
			}
			return c, nil
		}

		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		timer := time.NewTimer(remaining)
		select {
		case c := <-p.idle:
			timer.Stop()
			if fresh, err := p.revive(c); err == nil {
				return fresh, nil
			}
		case <-timer.C:
			return nil, ErrPoolTimeout
		}
	}
}

// claimSlot atomically increments the created counter if it is still below
// the limit.
func (p *Pool) claimSlot() bool {
	for {
		current := p.created.Load()
		if current >= p.limit {
			return false
		}
		if p.created.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// revive validates an idle connection and replaces it in place when stale.
// The slot stays claimed either way.
func (p *Pool) revive(c *Conn) (*Conn, error) {
	if err := c.validate(); err == nil {
		return c, nil
	}
	log.Debug("replacing stale pooled connection")
	c.close()
	fresh, err := p.open()
	if err != nil {
		p.created.Add(-1)
		return nil, err
	}
	return fresh, nil
}

// Push returns a connection to the idle set. Connections pushed after Close
// are discarded.
func (p *Pool) Push(c *Conn) {
	if c == nil {
		return
	}
	if p.closed.Load() {
		c.close()
		return
	}
	select {
	case p.idle <- c:
	default:
		// More pushes than slots means the caller double-pushed; drop it.
		c.close()
		p.created.Add(-1)
	}
}

// Discard closes a connection known to be broken and frees its slot, so a
// future Pop can open a replacement.
func (p *Pool) Discard(c *Conn) {
	if c == nil {
		return
	}
	c.close()
	p.created.Add(-1)
}

// Close discards all idle connections and fails all future Pops.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	for {
		select {
		case c := <-p.idle:
			c.close()
			p.created.Add(-1)
		default:
			return
		}
	}
}
