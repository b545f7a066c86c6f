package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"conecta/internal/db"
	"conecta/internal/domain"
	"conecta/internal/migrate"
	"conecta/internal/repo"
)

const ts = "2024-01-01T00:00:00Z"

func newRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}, context.Background()
}

func withTx(t *testing.T, r repo.Repo, fn func(tx *sql.Tx)) {
	t.Helper()
	tx, err := r.DB.Begin()
	if err != nil {
		t.Fatal(err)
	}
	fn(tx)
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func seedProject(t *testing.T, r repo.Repo, ctx context.Context, phase string, codes ...string) (domain.Project, []domain.Subtask) {
	t.Helper()
	var (
		p    domain.Project
		subs []domain.Subtask
	)
	withTx(t, r, func(tx *sql.Tx) {
		var err error
		p, err = r.InsertProjectTx(ctx, tx, domain.Project{
			ClientID: 1, Title: "Tienda", Description: "d", Specialty: "OTRO",
			Status: domain.StatusPending, Phase: phase, CreatedAt: ts, UpdatedAt: ts,
		})
		if err != nil {
			t.Fatal(err)
		}
		for _, code := range codes {
			s, err := r.InsertSubtaskTx(ctx, tx, domain.Subtask{
				ProjectID: p.ID, Code: code, Title: code, Specialty: "HOSTING", Status: domain.SubtaskPending,
				Priority: domain.PriorityMedium, EstimateHours: 40, CreatedAt: ts, UpdatedAt: ts,
			})
			if err != nil {
				t.Fatal(err)
			}
			subs = append(subs, s)
		}
	})
	return p, subs
}

func TestProjectRoundTrip(t *testing.T) {
	r, ctx := newRepo(t)
	p, _ := seedProject(t, r, ctx, domain.PhaseAnalysis)
	got, err := r.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Phase != domain.PhaseAnalysis || len(got.AcceptanceCriteria) != 0 || got.VendorID != nil {
		t.Fatalf("unexpected project %+v", got)
	}
	if _, err := r.GetProject(ctx, 999); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := r.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.DeleteProject(ctx, p.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestTurnsReplayInOrder(t *testing.T) {
	r, ctx := newRepo(t)
	p, _ := seedProject(t, r, ctx, domain.PhaseAnalysis)
	withTx(t, r, func(tx *sql.Tx) {
		for _, turn := range []domain.Turn{
			{Emitter: domain.EmitterClient, Message: "hola", TS: "2024-01-01T00:00:00Z"},
			{Emitter: domain.EmitterAI, Message: "respuesta", TS: "2024-01-01T00:00:00Z", Metadata: map[string]any{"tokens_usados": 10}},
			{Emitter: domain.EmitterClient, Message: "segundo", TS: "2024-01-01T00:00:01Z"},
		} {
			turn.ProjectID, turn.ClientID, turn.Type = p.ID, 1, domain.ConversationAnalysis
			if _, err := r.InsertTurnTx(ctx, tx, turn); err != nil {
				t.Fatal(err)
			}
		}
	})
	turns, err := r.ListTurns(ctx, p.ID, domain.ConversationAnalysis)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 3 || turns[0].Message != "hola" || turns[1].Message != "respuesta" || turns[2].Message != "segundo" {
		t.Fatalf("bad order: %+v", turns)
	}
	if turns[1].Metadata["tokens_usados"] != float64(10) {
		t.Fatalf("metadata lost: %v", turns[1].Metadata)
	}
	last, err := r.LatestTurn(ctx, p.ID, domain.ConversationAnalysis, domain.EmitterAI)
	if err != nil || last.Message != "respuesta" {
		t.Fatalf("latest AI turn: %v %+v", err, last)
	}
}

func TestAssignIsConditional(t *testing.T) {
	r, ctx := newRepo(t)
	_, subs := seedProject(t, r, ctx, domain.PhasePublished, "P1-TASK-001")
	a, _ := r.InsertVendor(ctx, domain.Vendor{Name: "A", Email: "a@x", Specialties: []string{"HOSTING"}, CreatedAt: ts})
	b, _ := r.InsertVendor(ctx, domain.Vendor{Name: "B", Email: "b@x", Specialties: []string{"HOSTING"}, CreatedAt: ts})
	withTx(t, r, func(tx *sql.Tx) {
		ok, err := r.AssignSubtaskTx(ctx, tx, subs[0].ID, a.ID, ts)
		if err != nil || !ok {
			t.Fatalf("first assign: %v %v", ok, err)
		}
		ok, err = r.AssignSubtaskTx(ctx, tx, subs[0].ID, b.ID, ts)
		if err != nil || ok {
			t.Fatalf("second assign must not win: %v %v", ok, err)
		}
	})
	got, _ := r.GetSubtask(ctx, subs[0].ID)
	if got.VendorID == nil || *got.VendorID != a.ID || got.Status != domain.SubtaskAssigned {
		t.Fatalf("winner overwritten: %+v", got)
	}
}

func TestRejectCompetingRequests(t *testing.T) {
	r, ctx := newRepo(t)
	p, subs := seedProject(t, r, ctx, domain.PhasePublished, "P1-TASK-001")
	a, _ := r.InsertVendor(ctx, domain.Vendor{Name: "A", Email: "a@x", CreatedAt: ts})
	b, _ := r.InsertVendor(ctx, domain.Vendor{Name: "B", Email: "b@x", CreatedAt: ts})
	var reqA domain.WorkRequest
	withTx(t, r, func(tx *sql.Tx) {
		var err error
		reqA, err = r.InsertRequestTx(ctx, tx, domain.WorkRequest{SubtaskID: subs[0].ID, VendorID: a.ID, Status: domain.RequestPending, RequestedAt: ts})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := r.InsertRequestTx(ctx, tx, domain.WorkRequest{SubtaskID: subs[0].ID, VendorID: b.ID, Status: domain.RequestPending, RequestedAt: ts}); err != nil {
			t.Fatal(err)
		}
		dup, err := r.HasPendingRequestTx(ctx, tx, subs[0].ID, a.ID)
		if err != nil || !dup {
			t.Fatalf("pending lookup: %v %v", dup, err)
		}
	})
	pending, err := r.ListPendingProjectRequests(ctx, p.ID)
	if err != nil || len(pending) != 2 || pending[0].VendorName == "" || pending[0].SubtaskCode != "P1-TASK-001" {
		t.Fatalf("pending view: %v %+v", err, pending)
	}
	withTx(t, r, func(tx *sql.Tx) {
		ok, err := r.RespondRequestTx(ctx, tx, reqA.ID, domain.RequestAccepted, "", ts)
		if err != nil || !ok {
			t.Fatalf("accept: %v %v", ok, err)
		}
		n, err := r.RejectPendingForSubtaskTx(ctx, tx, subs[0].ID, reqA.ID, "otro", ts)
		if err != nil || n != 1 {
			t.Fatalf("cascade: %d %v", n, err)
		}
		ok, err = r.RespondRequestTx(ctx, tx, reqA.ID, domain.RequestRejected, "", ts)
		if err != nil || ok {
			t.Fatalf("answered requests stay answered: %v %v", ok, err)
		}
	})
	mine, err := r.ListVendorRequests(ctx, b.ID)
	if err != nil || len(mine) != 1 || mine[0].Status != domain.RequestRejected || mine[0].RejectReason != "otro" {
		t.Fatalf("vendor view: %v %+v", err, mine)
	}
}

func TestAvailableOrdering(t *testing.T) {
	r, ctx := newRepo(t)
	seedProject(t, r, ctx, domain.PhaseAnalysis, "P1-TASK-001")
	p, subs := seedProject(t, r, ctx, domain.PhasePublished, "P2-TASK-001", "P2-TASK-002")
	if _, err := r.DB.Exec(`UPDATE sub_tareas SET prioridad='ALTA' WHERE id=?`, subs[1].ID); err != nil {
		t.Fatal(err)
	}
	got, err := r.ListAvailableSubtasks(ctx, repo.AvailableFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != subs[1].ID || got[0].ProjectID != p.ID {
		t.Fatalf("unexpected pool: %+v", got)
	}
	got, _ = r.ListAvailableSubtasks(ctx, repo.AvailableFilters{Priority: "BAJA"})
	if len(got) != 0 {
		t.Fatalf("priority filter: %+v", got)
	}
}

func TestAnalysisVersions(t *testing.T) {
	r, ctx := newRepo(t)
	p, _ := seedProject(t, r, ctx, domain.PhaseAnalysis)
	withTx(t, r, func(tx *sql.Tx) {
		for i := 0; i < 2; i++ {
			if _, err := r.InsertAnalysisTx(ctx, tx, domain.AnalysisRecord{ProjectID: p.ID, PayloadJSON: "{}", Completed: true, CreatedAt: ts}); err != nil {
				t.Fatal(err)
			}
		}
	})
	list, err := r.ListAnalyses(ctx, p.ID)
	if err != nil || len(list) != 2 || list[0].Version != 1 || list[1].Version != 2 || !list[1].Completed {
		t.Fatalf("versions: %v %+v", err, list)
	}
}
