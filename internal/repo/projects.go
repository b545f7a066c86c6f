package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"conecta/internal/domain"
)

const projectColumns = `id,cliente_id,vendedor_id,titulo,descripcion,especialidad,estado,fase,COALESCE(historia_usuario,''),criterios_aceptacion,total_subtareas,subtareas_completadas,progreso,presupuesto,pagado,tiempo_estimado_dias,fecha_completado,created_at,updated_at`

func scanProject(row scanner) (domain.Project, error) {
	var (
		p         domain.Project
		vendorID  sql.NullInt64
		criteria  string
		completed sql.NullString
	)
	err := row.Scan(&p.ID, &p.ClientID, &vendorID, &p.Title, &p.Description, &p.Specialty, &p.Status, &p.Phase,
		&p.UserStory, &criteria, &p.TotalSubtasks, &p.CompletedSubtasks, &p.Progress, &p.Budget, &p.Paid,
		&p.EstimatedDays, &completed, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.VendorID = int64Ptr(vendorID)
	p.AcceptanceCriteria = unmarshalStrings(criteria)
	p.CompletedAt = stringPtr(completed)
	return p, nil
}

// InsertProjectTx stores p and returns it with its new id.
func (r Repo) InsertProjectTx(ctx context.Context, tx *sql.Tx, p domain.Project) (domain.Project, error) {
	criteria, err := marshalStrings(p.AcceptanceCriteria)
	if err != nil {
		return p, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO proyectos(cliente_id,vendedor_id,titulo,descripcion,especialidad,estado,fase,historia_usuario,criterios_aceptacion,presupuesto,pagado,tiempo_estimado_dias,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ClientID, nullableInt64Ptr(p.VendorID), p.Title, p.Description, p.Specialty, p.Status, p.Phase, nullable(p.UserStory),
		criteria, p.Budget, p.Paid, p.EstimatedDays, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return p, fmt.Errorf("insert project: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if p.AcceptanceCriteria == nil {
		p.AcceptanceCriteria = []string{}
	}
	return p, err
}

func (r Repo) GetProject(ctx context.Context, id int64) (domain.Project, error) {
	return r.getProject(ctx, r.DB, id)
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Project, error) {
	return r.getProject(ctx, tx, id)
}

func (r Repo) getProject(ctx context.Context, q querier, id int64) (domain.Project, error) {
	return scanProject(q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM proyectos WHERE id=?`, id))
}

// ProjectFilters narrows ListProjects.
type ProjectFilters struct {
	ClientID int64
	Phase    string
	Limit    int
}

func (r Repo) ListProjects(ctx context.Context, f ProjectFilters) ([]domain.Project, error) {
	var (
		clauses []string
		args    []any
	)
	if f.ClientID != 0 {
		clauses = append(clauses, "cliente_id=?")
		args = append(args, f.ClientID)
	}
	if f.Phase != "" {
		clauses = append(clauses, "fase=?")
		args = append(args, f.Phase)
	}
	query := `SELECT ` + projectColumns + ` FROM proyectos`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// DeleteProject removes a project and, by cascade, its turns, analyses and sub-tasks.
func (r Repo) DeleteProject(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM proyectos WHERE id=?`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// ProjectAnalysisUpdate carries the fields a completed decomposition writes back.
type ProjectAnalysisUpdate struct {
	Title              string
	Description        string
	UserStory          string
	AcceptanceCriteria []string
	Specialty          string
	Budget             float64
	EstimatedDays      int
	TotalSubtasks      int
	UpdatedAt          string
}

func (r Repo) UpdateProjectAnalysisTx(ctx context.Context, tx *sql.Tx, id int64, u ProjectAnalysisUpdate) error {
	criteria, err := marshalStrings(u.AcceptanceCriteria)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE proyectos SET titulo=?, descripcion=?, historia_usuario=?, criterios_aceptacion=?, especialidad=?, presupuesto=?, tiempo_estimado_dias=?, total_subtareas=?, updated_at=? WHERE id=?`,
		u.Title, u.Description, nullable(u.UserStory), criteria, u.Specialty, u.Budget, u.EstimatedDays, u.TotalSubtasks, u.UpdatedAt, id)
	if err != nil {
		return fmt.Errorf("update project analysis: %w", err)
	}
	return affectedOrNotFound(res)
}

// SetProjectPhaseTx writes phase and legacy status. totalSubtasks < 0 keeps the stored count.
func (r Repo) SetProjectPhaseTx(ctx context.Context, tx *sql.Tx, id int64, phase, status string, totalSubtasks int, completedAt *string, updatedAt string) error {
	fields := []string{"fase=?", "estado=?", "updated_at=?"}
	args := []any{phase, status, updatedAt}
	if totalSubtasks >= 0 {
		fields = append(fields, "total_subtareas=?")
		args = append(args, totalSubtasks)
	}
	if completedAt != nil {
		fields = append(fields, "fecha_completado=?")
		args = append(args, *completedAt)
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE proyectos SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return fmt.Errorf("set project phase: %w", err)
	}
	return affectedOrNotFound(res)
}

// AdvancePhaseTx moves a project from one phase to another only if it is still
// in the expected phase. It reports whether the row changed.
func (r Repo) AdvancePhaseTx(ctx context.Context, tx *sql.Tx, id int64, from, to, status, updatedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE proyectos SET fase=?, estado=?, updated_at=? WHERE id=? AND fase=?`, to, status, updatedAt, id, from)
	if err != nil {
		return false, fmt.Errorf("advance project phase: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r Repo) UpdateProjectProgressTx(ctx context.Context, tx *sql.Tx, id int64, completed, progress int, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE proyectos SET subtareas_completadas=?, progreso=?, updated_at=? WHERE id=?`, completed, progress, updatedAt, id)
	if err != nil {
		return fmt.Errorf("update project progress: %w", err)
	}
	return affectedOrNotFound(res)
}
