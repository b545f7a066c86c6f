package events

import (
	"context"
	"testing"
	"time"

	"conecta/internal/db"
	"conecta/internal/migrate"
)

func TestAppendWritesInsideTx(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatal(err)
	}
	w := Writer{DB: conn, Now: func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }}
	ctx := context.Background()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append(ctx, tx, "project.created", 0, "project", 9, "", EventPayload{"fase": "ANALISIS"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = tx.Rollback()
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil || n != 0 {
		t.Fatalf("rolled back event persisted: %d %v", n, err)
	}

	tx, _ = conn.BeginTx(ctx, nil)
	if err := w.Append(ctx, tx, "request.sent", 0, "request", 4, Actor("vendedor", 3), nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	var actor, entity, payload string
	if err := conn.QueryRow(`SELECT actor_id, entity_id, payload_json FROM events`).Scan(&actor, &entity, &payload); err != nil {
		t.Fatal(err)
	}
	if actor != "vendedor:3" || entity != "4" || payload != "{}" {
		t.Fatalf("unexpected row %s %s %s", actor, entity, payload)
	}
}
