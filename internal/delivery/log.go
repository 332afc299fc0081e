// Package delivery records the outcome of every webhook delivery in SQLite.
package delivery

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

type Status string

const (
	StatusSucceeded    Status = "succeeded"
	StatusAcknowledged Status = "acknowledged" // workflow declined the event
	StatusRejected     Status = "rejected"     // client error, e.g. bad signature
	StatusFailed       Status = "failed"
)

// Record is one delivery outcome.
type Record struct {
	ID            string
	DeliveryID    string // X-GitHub-Delivery, may be empty
	Event         string
	PayloadDigest string
	Status        Status
	HTTPStatus    int
	Error         string
	CreatedAt     time.Time
	Duration      time.Duration
}

// Digest returns the hex BLAKE3 digest of a payload.
func Digest(body []byte) string {
	sum := blake3.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type Log struct {
	db *sql.DB
}

func New(db *sql.DB) *Log {
	return &Log{db: db}
}

// Record stores rec and returns its id. ID and CreatedAt are filled in when
// empty.
func (l *Log) Record(ctx context.Context, rec Record) (string, error) {
	if rec.Event == "" {
		return "", fmt.Errorf("event is empty")
	}
	if rec.Status == "" {
		return "", fmt.Errorf("status is empty")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	var deliveryID, lastErr any
	if rec.DeliveryID != "" {
		deliveryID = rec.DeliveryID
	}
	if rec.Error != "" {
		lastErr = rec.Error
	}

	_, err := l.db.ExecContext(ctx, `
INSERT INTO deliveries(id, delivery_id, event, payload_digest, status, http_status, error, created_at, duration_ms)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
`, rec.ID, deliveryID, rec.Event, rec.PayloadDigest, string(rec.Status), rec.HTTPStatus, lastErr,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.Duration.Milliseconds())
	if err != nil {
		return "", fmt.Errorf("record delivery: %w", err)
	}
	return rec.ID, nil
}

// Recent returns up to limit records, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.QueryContext(ctx, `
SELECT id, delivery_id, event, payload_digest, status, http_status, error, created_at, duration_ms
FROM deliveries
ORDER BY created_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec        Record
			deliveryID sql.NullString
			lastErr    sql.NullString
			status     string
			createdAtS string
			durationMS int64
		)
		if err := rows.Scan(&rec.ID, &deliveryID, &rec.Event, &rec.PayloadDigest, &status,
			&rec.HTTPStatus, &lastErr, &createdAtS, &durationMS); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		rec.Status = Status(status)
		rec.DeliveryID = deliveryID.String
		rec.Error = lastErr.String
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
			rec.CreatedAt = t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return out, nil
}
