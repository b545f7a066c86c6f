package repo

import (
	"context"
	"database/sql"
	"fmt"

	"conecta/internal/domain"
)

// InsertAnalysisTx appends a new analysis snapshot with the next version number.
func (r Repo) InsertAnalysisTx(ctx context.Context, tx *sql.Tx, a domain.AnalysisRecord) (domain.AnalysisRecord, error) {
	var current int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version),0) FROM analisis_ia WHERE proyecto_id=?`, a.ProjectID).Scan(&current); err != nil {
		return a, err
	}
	a.Version = current + 1
	specialties, err := marshalStrings(a.Specialties)
	if err != nil {
		return a, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO analisis_ia(proyecto_id,version,analisis,especialidades,presupuesto_estimado,tiempo_estimado_dias,completado,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		a.ProjectID, a.Version, a.PayloadJSON, specialties, a.EstimatedBudget, a.EstimatedDays, a.Completed, a.CreatedAt)
	if err != nil {
		return a, fmt.Errorf("insert analysis: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return a, err
}

// ListAnalyses returns every snapshot of a project, oldest first.
func (r Repo) ListAnalyses(ctx context.Context, projectID int64) ([]domain.AnalysisRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,proyecto_id,version,analisis,especialidades,presupuesto_estimado,tiempo_estimado_dias,completado,created_at FROM analisis_ia WHERE proyecto_id=? ORDER BY version ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.AnalysisRecord{}
	for rows.Next() {
		var (
			a           domain.AnalysisRecord
			specialties string
		)
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.Version, &a.PayloadJSON, &specialties, &a.EstimatedBudget, &a.EstimatedDays, &a.Completed, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Specialties = unmarshalStrings(specialties)
		res = append(res, a)
	}
	return res, rows.Err()
}
