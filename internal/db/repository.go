package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/uologin/internal/crypto"
	"github.com/udisondev/uologin/internal/model"
)

// PostgresDetectionRepository stores login detection history in PostgreSQL.
type PostgresDetectionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresDetectionRepository создаёт новый PostgreSQL repository.
func NewPostgresDetectionRepository(pool *pgxpool.Pool) *PostgresDetectionRepository {
	return &PostgresDetectionRepository{pool: pool}
}

// RecordDetection inserts one detection outcome.
// A zero CreatedAt is replaced with the current time.
func (r *PostgresDetectionRepository) RecordDetection(ctx context.Context, d model.Detection) error {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO login_detections
		   (remote_ip, seed, detected, unencrypted, version, key1, key2, key3, probe_length, attempts, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.RemoteIP, int64(d.Seed), d.Detected, d.Unencrypted, d.Version,
		int64(d.Key1), int64(d.Key2), int64(d.Key3), d.ProbeLength, d.Attempts, createdAt,
	)
	if err != nil {
		return fmt.Errorf("recording detection for %s: %w", d.RemoteIP, err)
	}
	return nil
}

// LastVersion returns the most recently detected version for ip.
// ok is false when the address has no successful detection.
func (r *PostgresDetectionRepository) LastVersion(ctx context.Context, ip string) (crypto.Version, bool, error) {
	var s string
	err := r.pool.QueryRow(ctx,
		`SELECT version FROM login_detections
		 WHERE remote_ip = $1 AND detected
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`, ip,
	).Scan(&s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crypto.Version{}, false, nil
		}
		return crypto.Version{}, false, fmt.Errorf("querying last version for %s: %w", ip, err)
	}

	v, err := crypto.ParseVersion(s)
	if err != nil {
		return crypto.Version{}, false, fmt.Errorf("parsing stored version for %s: %w", ip, err)
	}
	return v, true, nil
}

// RecentDetections returns up to limit detections for ip, newest first.
func (r *PostgresDetectionRepository) RecentDetections(ctx context.Context, ip string, limit int) ([]model.Detection, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT remote_ip, seed, detected, unencrypted, version, key1, key2, key3, probe_length, attempts, created_at
		 FROM login_detections
		 WHERE remote_ip = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`, ip, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying detections for %s: %w", ip, err)
	}
	defer rows.Close()

	var out []model.Detection
	for rows.Next() {
		var (
			d                model.Detection
			seed, k1, k2, k3 int64
		)
		if err := rows.Scan(&d.RemoteIP, &seed, &d.Detected, &d.Unencrypted, &d.Version,
			&k1, &k2, &k3, &d.ProbeLength, &d.Attempts, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning detection: %w", err)
		}
		d.Seed = uint32(seed)
		d.Key1, d.Key2, d.Key3 = uint32(k1), uint32(k2), uint32(k3)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating detections: %w", err)
	}
	return out, nil
}
