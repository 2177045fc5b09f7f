package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/mccskill/internal/domain/model"
)

// testDB connects to the database named by MCCSKILL_TEST_POSTGRES_DSN or
// skips the test.
func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("MCCSKILL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MCCSKILL_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestOpen_EmptyDSN(t *testing.T) {
	if _, err := Open(context.Background(), "  "); !errors.Is(err, ErrEmptyDSN) {
		t.Fatalf("expected ErrEmptyDSN, got %v", err)
	}
}

func TestSchemaEmbedded(t *testing.T) {
	b, err := schema.ReadFile("schema.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if len(b) == 0 {
		t.Fatal("schema is empty")
	}
}

func TestSaveAndLatestRun(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	// Migrate twice to make sure it is idempotent.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	older := model.Run{
		ID:        uuid.New(),
		StartedAt: time.Now().Add(-time.Hour).UTC().Truncate(time.Microsecond),
		Duration:  5 * time.Millisecond,
		Players:   1,
		Events:    31,
		Passes:    1000,
		Skills:    map[string]float64{"old": 1},
	}
	newer := model.Run{
		ID:        uuid.New(),
		StartedAt: time.Now().UTC().Truncate(time.Microsecond),
		Duration:  12 * time.Millisecond,
		Players:   2,
		Events:    31,
		Passes:    42,
		Converged: true,
		Skills:    map[string]float64{"Dream": 0.75, "Sapnap": 0.25},
	}
	for _, r := range []model.Run{older, newer} {
		if err := db.SaveRun(ctx, r); err != nil {
			t.Fatalf("save run: %v", err)
		}
	}

	got, err := db.LatestRun(ctx)
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	if got.ID != newer.ID {
		t.Fatalf("expected run %s, got %s", newer.ID, got.ID)
	}
	if got.Passes != 42 || !got.Converged || got.Players != 2 {
		t.Errorf("unexpected run header %+v", got)
	}
	if len(got.Skills) != 2 || got.Skills["Dream"] != 0.75 || got.Skills["Sapnap"] != 0.25 {
		t.Errorf("unexpected skills %v", got.Skills)
	}
}
