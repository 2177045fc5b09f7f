// Package store archives estimation runs in PostgreSQL.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/mccskill/internal/domain/model"
)

//go:embed schema.sql
var schema embed.FS

// DB wraps a pgx pool with run archive helpers.
type DB struct{ *pgxpool.Pool }

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrEmptyDSN
	}
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{p}, nil
}

func (db *DB) Close() { db.Pool.Close() }

// Migrate applies the embedded schema. It is safe to run repeatedly.
func (db *DB) Migrate(ctx context.Context) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, string(sqlBytes)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SaveRun stores a run and its skill vector in a single transaction.
func (db *DB) SaveRun(ctx context.Context, run model.Run) error {
	runID := pgtype.UUID{Bytes: run.ID, Valid: true}

	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // no-op after commit

	if _, err := tx.Exec(ctx, `
		INSERT INTO runs(id, started_at, duration_ms, players, events, passes, converged)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, runID, run.StartedAt, float64(run.Duration)/float64(time.Millisecond),
		run.Players, run.Events, run.Passes, run.Converged); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	ids := make([]string, 0, len(run.Skills))
	for id := range run.Skills {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([][]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, []any{runID, id, run.Skills[id]})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"skills"},
		[]string{"run_id", "player_id", "skill"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("copy skills: %w", err)
	}

	return tx.Commit(ctx)
}

// LatestRun loads the most recently started run with its skills.
// Returns ErrNoRuns when the archive is empty.
func (db *DB) LatestRun(ctx context.Context) (model.Run, error) {
	var (
		run        model.Run
		id         pgtype.UUID
		durationMs float64
	)
	err := db.QueryRow(ctx, `
		SELECT id, started_at, duration_ms, players, events, passes, converged
		  FROM runs
		 ORDER BY started_at DESC
		 LIMIT 1
	`).Scan(&id, &run.StartedAt, &durationMs, &run.Players, &run.Events, &run.Passes, &run.Converged)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Run{}, ErrNoRuns
		}
		return model.Run{}, err
	}
	run.ID = uuid.UUID(id.Bytes)
	run.Duration = time.Duration(durationMs * float64(time.Millisecond))

	rows, err := db.Query(ctx, `SELECT player_id, skill FROM skills WHERE run_id = $1`, id)
	if err != nil {
		return model.Run{}, err
	}
	defer rows.Close()

	run.Skills = make(map[string]float64, run.Players)
	for rows.Next() {
		var (
			player string
			skill  float64
		)
		if err := rows.Scan(&player, &skill); err != nil {
			return model.Run{}, err
		}
		run.Skills[player] = skill
	}
	return run, rows.Err()
}
