package migrate

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"conecta/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	for i := 0; i < 2; i++ {
		if err := Migrate(conn); err != nil {
			t.Fatalf("migrate pass %d: %v", i, err)
		}
	}
	migrations, err := Load(files)
	if err != nil {
		t.Fatal(err)
	}
	applied, err := History(context.Background(), conn)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(applied) != len(migrations) || applied[0].Name != "0001_init" || applied[0].AppliedAt == "" {
		t.Fatalf("unexpected history %+v", applied)
	}
	for _, table := range []string{"proyectos", "sub_tareas", "solicitudes_subtarea", "analisis_ia", "conversacion_turnos", "vendedores", "events"} {
		var name string
		if err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestPendingRequestUniqueness(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if err := Migrate(conn); err != nil {
		t.Fatal(err)
	}
	stmts := []string{
		`INSERT INTO vendedores(id,nombre,correo,especialidades,created_at) VALUES (1,'v','v@x','[]','t')`,
		`INSERT INTO proyectos(id,cliente_id,titulo,descripcion,especialidad,estado,fase,created_at,updated_at) VALUES (1,1,'p','d','OTRO','pendiente','PUBLICADO','t','t')`,
		`INSERT INTO sub_tareas(id,proyecto_id,codigo,titulo,especialidad,estado,prioridad,estimacion_horas,created_at,updated_at) VALUES (1,1,'P1-TASK-001','s','HOSTING','PENDIENTE','MEDIA',40,'t','t')`,
		`INSERT INTO solicitudes_subtarea(subtarea_id,vendedor_id,estado,fecha_solicitud) VALUES (1,1,'PENDIENTE','t')`,
	}
	for _, s := range stmts {
		if _, err := conn.Exec(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	if _, err := conn.Exec(`INSERT INTO solicitudes_subtarea(subtarea_id,vendedor_id,estado,fecha_solicitud) VALUES (1,1,'PENDIENTE','t')`); err == nil {
		t.Fatalf("expected unique violation for second pending request")
	}
	if _, err := conn.Exec(`INSERT INTO solicitudes_subtarea(subtarea_id,vendedor_id,estado,fecha_solicitud) VALUES (1,1,'RECHAZADA','t')`); err != nil {
		t.Fatalf("non-pending duplicates are allowed: %v", err)
	}
}

func TestApplyRecordsOnlyNewMigrations(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()
	clock := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	first := fstest.MapFS{
		"sql/0001_a.sql": {Data: []byte(`CREATE TABLE a(id INTEGER);`)},
	}
	ms, err := Load(first)
	if err != nil {
		t.Fatal(err)
	}
	if err := apply(ctx, conn, ms, clock); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	second := fstest.MapFS{
		"sql/0001_a.sql": {Data: []byte(`CREATE TABLE a(id INTEGER);`)},
		"sql/0002_b.sql": {Data: []byte(`CREATE TABLE b(id INTEGER);`)},
	}
	ms, err = Load(second)
	if err != nil {
		t.Fatal(err)
	}
	if err := apply(ctx, conn, ms, clock); err != nil {
		t.Fatalf("second apply must skip 0001: %v", err)
	}
	applied, _ := History(ctx, conn)
	if len(applied) != 2 || applied[1].Version != 2 || applied[1].AppliedAt != "2024-01-01T00:00:00Z" {
		t.Fatalf("unexpected history %+v", applied)
	}

	broken := fstest.MapFS{"sql/0003_c.sql": {Data: []byte(`CREATE TABLE c(id INTEGER); NOT SQL;`)}}
	ms, _ = Load(broken)
	if err := apply(ctx, conn, ms, clock); err == nil {
		t.Fatalf("expected failing migration")
	}
	applied, _ = History(ctx, conn)
	if len(applied) != 2 {
		t.Fatalf("failed migration must not be recorded: %+v", applied)
	}
}

func TestLoadRejectsBadNames(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"no version": {"sql/init.sql": {Data: []byte(``)}},
		"zero":       {"sql/0000_init.sql": {Data: []byte(``)}},
		"duplicate": {
			"sql/0001_a.sql": {Data: []byte(``)},
			"sql/1_b.sql":    {Data: []byte(``)},
		},
	}
	for name, fsys := range cases {
		if _, err := Load(fsys); err == nil || !strings.Contains(err.Error(), "migration") {
			t.Fatalf("%s: expected error, got %v", name, err)
		}
	}
}
