package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/convoshop/realtime/internal/bus"
	"github.com/convoshop/realtime/internal/queue"
	"github.com/convoshop/realtime/internal/transport"
)

// Columns are the archive table's columns in COPY order.
var Columns = []string{"id", "conn_id", "event", "transport", "payload", "received_at"}

// Copier is the subset of a pgx pool used for writes.
type Copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Execer runs DDL.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Source is what Attach subscribes to.
type Source interface {
	ID() string
	Transport() transport.Kind
	OnAny(h bus.Handler) func()
}

// Config configures a Writer.
type Config struct {
	Table         string
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Table:         "realtime_envelopes",
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// Record is one archived envelope.
type Record struct {
	ID         uuid.UUID
	ConnID     string
	Event      string
	Transport  transport.Kind
	Payload    json.RawMessage
	ReceivedAt time.Time
}

func (r Record) values() []any {
	payload := r.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return []any{r.ID, r.ConnID, r.Event, r.Transport.String(), string(payload), r.ReceivedAt}
}

// Stats are the writer's counters.
type Stats struct {
	Received int64
	Inserted int64
	Flushes  int64
	Errors   int64
	Dropped  int64
}

// Writer batches records into the archive table.
type Writer struct {
	cfg    Config
	db     Copier
	logger *slog.Logger
	table  pgx.Identifier

	input *queue.Queue[Record]

	batchMu sync.Mutex
	batch   []Record
	stats   Stats

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWriter creates a writer. Call Start before recording.
func NewWriter(cfg Config, db Copier, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Table == "" {
		cfg.Table = def.Table
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	return &Writer{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "archive", "table", cfg.Table),
		table:  identifier(cfg.Table),
		input:  queue.New[Record](cfg.BatchSize),
		batch:  make([]Record, 0, cfg.BatchSize),
	}
}

// Start begins consuming records.
func (w *Writer) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.consumeLoop(ctx)
	go w.flushLoop(ctx)

	w.logger.Info("archive writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains queued records, writes the final batch and shuts down.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping archive writer")

	w.input.Close()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("archive writer stop timed out")
	}
	if w.cancel != nil {
		w.cancel()
	}

	// Final flush
	if err := w.flush(ctx); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	w.logger.Info("archive writer stopped")
	return nil
}

// Record queues r. Returns false once the writer is stopping.
func (w *Writer) Record(r Record) bool {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = time.Now()
	}
	ok := w.input.Push(r)

	w.batchMu.Lock()
	if ok {
		w.stats.Received++
	} else {
		w.stats.Dropped++
	}
	w.batchMu.Unlock()
	return ok
}

// Attach records every envelope src delivers. The returned func detaches.
func (w *Writer) Attach(src Source) func() {
	connID := src.ID()
	return src.OnAny(func(env bus.Envelope) {
		w.Record(Record{
			ConnID:    connID,
			Event:     env.Event,
			Transport: src.Transport(),
			Payload:   env.Data,
		})
	})
}

// Stats returns current counters.
func (w *Writer) Stats() Stats {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// consumeLoop moves queued records into the batch until the queue is closed
// and drained.
func (w *Writer) consumeLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		r, ok := w.input.Pop()
		if !ok {
			return
		}

		w.batchMu.Lock()
		w.batch = append(w.batch, r)
		full := len(w.batch) >= w.cfg.BatchSize
		w.batchMu.Unlock()

		if full {
			if err := w.flush(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("archive flush failed", "err", err)
			}
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.flush(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("archive flush failed", "err", err)
			}
		}
	}
}

// flush writes the current batch. A failed batch is counted and dropped.
func (w *Writer) flush(ctx context.Context) error {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return nil
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]Record, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()
	n, err := w.db.CopyFrom(ctx, w.table, Columns, pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
		return batch[i].values(), nil
	}))

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	if err != nil {
		w.stats.Errors++
		return fmt.Errorf("copy %d records: %w", len(batch), err)
	}
	w.stats.Inserted += n
	w.stats.Flushes++

	w.logger.Debug("flushed envelopes",
		"count", n,
		"duration", time.Since(start),
	)
	return nil
}

// EnsureTable creates the archive table if it does not exist.
func EnsureTable(ctx context.Context, db Execer, table string) error {
	name := identifier(table).Sanitize()
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id          uuid PRIMARY KEY,
			conn_id     text NOT NULL,
			event       text NOT NULL,
			transport   text NOT NULL,
			payload     jsonb NOT NULL,
			received_at timestamptz NOT NULL
		)`, name)
	if _, err := db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create archive table %s: %w", name, err)
	}
	return nil
}

// identifier splits an optionally schema-qualified table name.
func identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}
