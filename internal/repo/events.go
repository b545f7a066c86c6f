package repo

import (
	"context"
	"database/sql"
	"strings"

	"conecta/internal/domain"
)

// LatestEvents returns up to limit events newest first. beforeID > 0 pages
// backwards; projectID and evtType filter when set.
func (r Repo) LatestEvents(ctx context.Context, limit int, beforeID, projectID int64, evtType string) ([]domain.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if beforeID > 0 {
		clauses = append(clauses, "id < ?")
		args = append(args, beforeID)
	}
	if projectID != 0 {
		clauses = append(clauses, "proyecto_id = ?")
		args = append(args, projectID)
	}
	if evtType != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, evtType)
	}
	query := `SELECT id,ts,type,proyecto_id,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var (
			e   domain.Event
			pid sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &pid, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		e.ProjectID = int64Ptr(pid)
		res = append(res, e)
	}
	return res, rows.Err()
}
