package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"conecta/internal/domain"
)

const turnColumns = `id,proyecto_id,cliente_id,tipo,emisor,participante_id,mensaje,metadatos,ts`

func scanTurn(row scanner) (domain.Turn, error) {
	var (
		t           domain.Turn
		participant sql.NullInt64
		meta        string
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.ClientID, &t.Type, &t.Emitter, &participant, &t.Message, &meta, &t.TS); err != nil {
		if err == sql.ErrNoRows {
			return t, ErrNotFound
		}
		return t, err
	}
	t.ParticipantID = int64Ptr(participant)
	if meta != "" {
		_ = json.Unmarshal([]byte(meta), &t.Metadata)
	}
	return t, nil
}

// InsertTurnTx appends one turn to a project's conversation log.
func (r Repo) InsertTurnTx(ctx context.Context, tx *sql.Tx, t domain.Turn) (domain.Turn, error) {
	meta := []byte("{}")
	if len(t.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(t.Metadata); err != nil {
			return t, fmt.Errorf("marshal turn metadata: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO conversacion_turnos(proyecto_id,cliente_id,tipo,emisor,participante_id,mensaje,metadatos,ts) VALUES (?,?,?,?,?,?,?,?)`,
		t.ProjectID, t.ClientID, t.Type, t.Emitter, nullableInt64Ptr(t.ParticipantID), t.Message, string(meta), t.TS)
	if err != nil {
		return t, fmt.Errorf("insert turn: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return t, err
}

// ListTurns replays a conversation in (ts, id) order.
func (r Repo) ListTurns(ctx context.Context, projectID int64, convType string) ([]domain.Turn, error) {
	return r.listTurns(ctx, r.DB, projectID, convType)
}

func (r Repo) ListTurnsTx(ctx context.Context, tx *sql.Tx, projectID int64, convType string) ([]domain.Turn, error) {
	return r.listTurns(ctx, tx, projectID, convType)
}

func (r Repo) listTurns(ctx context.Context, q querier, projectID int64, convType string) ([]domain.Turn, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+turnColumns+` FROM conversacion_turnos WHERE proyecto_id=? AND tipo=? ORDER BY ts ASC, id ASC`, projectID, convType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Turn{}
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// LatestTurn returns the newest turn of the given emitter.
func (r Repo) LatestTurn(ctx context.Context, projectID int64, convType, emitter string) (domain.Turn, error) {
	return scanTurn(r.DB.QueryRowContext(ctx, `SELECT `+turnColumns+` FROM conversacion_turnos WHERE proyecto_id=? AND tipo=? AND emisor=? ORDER BY ts DESC, id DESC LIMIT 1`,
		projectID, convType, emitter))
}
