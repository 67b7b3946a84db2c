package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/tuya-fusion-core/internal/merge"
)

// Logger is the minimal logging surface the recorder needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

const recorderQueueSize = 256

// DiscrepancyRecorder persists merge discrepancies to SQLite.
//
// Record is called on the merge path and must not block, so writes go
// through a buffered queue drained by a background goroutine. When the
// queue is full the entry is dropped with a warning; the discrepancy
// table is an audit aid, not a ledger.
type DiscrepancyRecorder struct {
	db     *sql.DB
	logger Logger

	queue chan merge.Discrepancy
	done  chan struct{}
	once  sync.Once
}

// NewDiscrepancyRecorder creates a recorder and starts its writer
// goroutine. Call Close to drain and stop it.
func NewDiscrepancyRecorder(db *sql.DB) *DiscrepancyRecorder {
	r := &DiscrepancyRecorder{
		db:     db,
		logger: noopLogger{},
		queue:  make(chan merge.Discrepancy, recorderQueueSize),
		done:   make(chan struct{}),
	}
	go r.drain()
	return r
}

// SetLogger installs a logger. Call before the first merge.
func (r *DiscrepancyRecorder) SetLogger(l Logger) {
	if l != nil {
		r.logger = l
	}
}

// Record queues a discrepancy for persistence. Never blocks.
func (r *DiscrepancyRecorder) Record(d merge.Discrepancy) {
	select {
	case r.queue <- d:
	default:
		r.logger.Warn("discrepancy queue full, dropping entry",
			"device_id", d.DeviceID, "path", d.Path)
	}
}

// Close stops accepting entries, flushes the queue and waits for the
// writer goroutine to exit.
func (r *DiscrepancyRecorder) Close() {
	r.once.Do(func() {
		close(r.queue)
		<-r.done
	})
}

func (r *DiscrepancyRecorder) drain() {
	defer close(r.done)
	for d := range r.queue {
		if err := r.insert(d); err != nil {
			r.logger.Warn("recording discrepancy failed",
				"device_id", d.DeviceID, "path", d.Path, "error", err)
		}
	}
}

func (r *DiscrepancyRecorder) insert(d merge.Discrepancy) error {
	left, err := json.Marshal(d.Left)
	if err != nil {
		return fmt.Errorf("marshalling left value: %w", err)
	}
	right, err := json.Marshal(d.Right)
	if err != nil {
		return fmt.Errorf("marshalling right value: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO discrepancies (device_id, path, left_value, right_value, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.DeviceID, d.Path, string(left), string(right),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting discrepancy: %w", err)
	}
	return nil
}

// StoredDiscrepancy is one row of the discrepancy audit table.
type StoredDiscrepancy struct {
	ID         int64
	DeviceID   string
	Path       string
	LeftValue  string
	RightValue string
	RecordedAt string
}

// Discrepancies returns the recorded discrepancies for a device,
// newest first.
func (r *DiscrepancyRecorder) Discrepancies(ctx context.Context, deviceID string) ([]StoredDiscrepancy, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, path, left_value, right_value, recorded_at
		FROM discrepancies
		WHERE device_id = ?
		ORDER BY recorded_at DESC, id DESC`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("querying discrepancies: %w", err)
	}
	defer rows.Close()

	var out []StoredDiscrepancy
	for rows.Next() {
		var d StoredDiscrepancy
		if err := rows.Scan(&d.ID, &d.DeviceID, &d.Path, &d.LeftValue, &d.RightValue, &d.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning discrepancy: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating discrepancies: %w", err)
	}
	return out, nil
}
