// Package dbsource is a demonstration producer (spec.md §1: "Transport
// ... a producer that hands Δ batches to the core", out of the core's
// scope but a necessary collaborator to show the engine end to end). It
// polls a SQL table on an interval and turns the observed row-set
// changes into wire-format DeltaOps for circuit.Step.
//
// Grounded on internal/database/database.go's DBConnection
// dial/registry pattern (an id-keyed map of live *sql.DB handles, one
// struct per connection) — repurposed here from security scanning to
// change-polling, and on internal/database/db_manager.go's connection
// lifecycle (Connect/Close paired with a background goroutine).
package dbsource

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"sentra/internal/circuit"
)

// Row is the decoded shape of one polled table row: column name to
// value, plus the primary-key value under PKColumn for convenience.
type Row map[string]interface{}

// Poller connects to a SQL database and periodically diffs a query's
// result set against its previous poll, feeding the difference into a
// circuit as insert/update/delete DeltaOps on InputID.
type Poller struct {
	db       *sql.DB
	inputID  string
	query    string
	pkColumn string
	interval time.Duration

	mu       sync.Mutex
	lastSeen map[string]Row // pk string -> last-seen row
	closed   bool

	onPollError func(error)
}

// Config describes how to connect and what to poll.
type Config struct {
	Driver      string // "mysql", "postgres", "sqlite3", "sqlserver"
	DSN         string
	InputID     string // circuit table id to feed
	Query       string // must return pkColumn plus the table's other columns
	PKColumn    string
	Interval    time.Duration
	OnPollError func(error)
}

// Open dials the database and returns a Poller ready to Run.
func Open(cfg Config) (*Poller, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("dbsource: open %s: %w", cfg.Driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbsource: ping %s: %w", cfg.Driver, err)
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		db:          db,
		inputID:     cfg.InputID,
		query:       cfg.Query,
		pkColumn:    cfg.PKColumn,
		interval:    interval,
		lastSeen:    make(map[string]Row),
		onPollError: cfg.OnPollError,
	}, nil
}

// Close releases the underlying *sql.DB. Safe to call more than once.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

// Run polls on Interval until ctx is cancelled, calling step for every
// non-empty batch of DeltaOps it observes, keyed by this poller's
// InputID. step is typically (*circuit.Circuit).Step or a wrapper that
// serializes calls to it.
func (p *Poller) Run(ctx context.Context, step func(map[string][]circuit.DeltaOp) error) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ops, err := p.poll(ctx)
			if err != nil {
				if p.onPollError != nil {
					p.onPollError(err)
					continue
				}
				return err
			}
			if len(ops) == 0 {
				continue
			}
			if err := step(map[string][]circuit.DeltaOp{p.inputID: ops}); err != nil {
				return fmt.Errorf("dbsource: step: %w", err)
			}
		}
	}
}

// poll runs the configured query, compares the result against the
// previous poll's snapshot, and returns the insert/update/delete ops
// needed to bring the circuit's view of the table up to date. A row
// present in both polls with a same pkColumn but different content is
// an "update" op (the circuit table resolves this into its own
// retract-then-reinsert pair per spec.md's primary-key discipline).
func (p *Poller) poll(ctx context.Context) ([]circuit.DeltaOp, error) {
	rows, err := p.db.QueryContext(ctx, p.query)
	if err != nil {
		return nil, fmt.Errorf("dbsource: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	current := make(map[string]Row)
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("dbsource: scan: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		pk, ok := row[p.pkColumn]
		if !ok {
			return nil, fmt.Errorf("dbsource: query result missing pk column %q", p.pkColumn)
		}
		current[fmt.Sprint(pk)] = row
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var ops []circuit.DeltaOp
	for pk, row := range current {
		prev, existed := p.lastSeen[pk]
		if !existed {
			ops = append(ops, circuit.DeltaOp{Op: "insert", Row: row})
			continue
		}
		if !rowsEqual(prev, row) {
			ops = append(ops, circuit.DeltaOp{Op: "update", Row: row})
		}
	}
	for pk := range p.lastSeen {
		if _, stillThere := current[pk]; !stillThere {
			ops = append(ops, circuit.DeltaOp{Op: "delete", Key: pk})
		}
	}
	p.lastSeen = current
	return ops, nil
}

func rowsEqual(a, b Row) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || fmt.Sprint(av) != fmt.Sprint(bv) {
			return false
		}
	}
	return true
}
