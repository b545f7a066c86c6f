package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"conecta/internal/domain"
)

const subtaskColumns = `s.id,s.proyecto_id,s.codigo,s.titulo,s.descripcion,s.especialidad,s.vendedor_id,s.estado,s.prioridad,s.presupuesto,s.pagado,s.estimacion_horas,s.dependencias,s.fecha_asignacion,s.fecha_inicio,s.fecha_completado,s.created_at,s.updated_at`

func scanSubtask(row scanner) (domain.Subtask, error) {
	var (
		s                            domain.Subtask
		vendorID                     sql.NullInt64
		deps                         string
		assigned, started, completed sql.NullString
	)
	if err := row.Scan(&s.ID, &s.ProjectID, &s.Code, &s.Title, &s.Description, &s.Specialty, &vendorID, &s.Status, &s.Priority,
		&s.Budget, &s.Paid, &s.EstimateHours, &deps, &assigned, &started, &completed, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return s, ErrNotFound
		}
		return s, err
	}
	s.VendorID = int64Ptr(vendorID)
	s.Dependencies = unmarshalStrings(deps)
	s.AssignedAt = stringPtr(assigned)
	s.StartedAt = stringPtr(started)
	s.CompletedAt = stringPtr(completed)
	return s, nil
}

func (r Repo) InsertSubtaskTx(ctx context.Context, tx *sql.Tx, s domain.Subtask) (domain.Subtask, error) {
	deps, err := marshalStrings(s.Dependencies)
	if err != nil {
		return s, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO sub_tareas(proyecto_id,codigo,titulo,descripcion,especialidad,estado,prioridad,presupuesto,pagado,estimacion_horas,dependencias,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ProjectID, s.Code, s.Title, s.Description, s.Specialty, s.Status, s.Priority, s.Budget, s.Paid, s.EstimateHours, deps, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return s, fmt.Errorf("insert subtask %s: %w", s.Code, err)
	}
	s.ID, err = res.LastInsertId()
	if s.Dependencies == nil {
		s.Dependencies = []string{}
	}
	return s, err
}

// DeleteUnassignedSubtasksTx drops a project's pending, unassigned sub-tasks.
// A repeated analysis replaces the previous decomposition this way.
func (r Repo) DeleteUnassignedSubtasksTx(ctx context.Context, tx *sql.Tx, projectID int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM sub_tareas WHERE proyecto_id=? AND vendedor_id IS NULL AND estado=?`, projectID, domain.SubtaskPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) GetSubtask(ctx context.Context, id int64) (domain.Subtask, error) {
	return r.getSubtask(ctx, r.DB, id)
}

func (r Repo) GetSubtaskTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Subtask, error) {
	return r.getSubtask(ctx, tx, id)
}

func (r Repo) getSubtask(ctx context.Context, q querier, id int64) (domain.Subtask, error) {
	return scanSubtask(q.QueryRowContext(ctx, `SELECT `+subtaskColumns+` FROM sub_tareas s WHERE s.id=?`, id))
}

// CountSubtasksTx counts a project's sub-tasks, optionally by state.
func (r Repo) CountSubtasksTx(ctx context.Context, tx *sql.Tx, projectID int64, status string) (int, error) {
	query := `SELECT COUNT(*) FROM sub_tareas WHERE proyecto_id=?`
	args := []any{projectID}
	if status != "" {
		query += ` AND estado=?`
		args = append(args, status)
	}
	var n int
	err := tx.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// AssignSubtaskTx sets the vendor only if the sub-task is still pending and
// unassigned. It reports false when another transaction won.
func (r Repo) AssignSubtaskTx(ctx context.Context, tx *sql.Tx, id, vendorID int64, now string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE sub_tareas SET vendedor_id=?, estado=?, fecha_asignacion=?, updated_at=? WHERE id=? AND vendedor_id IS NULL AND estado=?`,
		vendorID, domain.SubtaskAssigned, now, now, id, domain.SubtaskPending)
	if err != nil {
		return false, fmt.Errorf("assign subtask: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// UpdateSubtaskStatusTx moves a sub-task from one state to another, stamping
// start or completion times when given. It reports false when the stored state
// no longer matches from.
func (r Repo) UpdateSubtaskStatusTx(ctx context.Context, tx *sql.Tx, id int64, from, to string, startedAt, completedAt *string, now string) (bool, error) {
	fields := []string{"estado=?", "updated_at=?"}
	args := []any{to, now}
	if startedAt != nil {
		fields = append(fields, "fecha_inicio=COALESCE(fecha_inicio,?)")
		args = append(args, *startedAt)
	}
	if completedAt != nil {
		fields = append(fields, "fecha_completado=?")
		args = append(args, *completedAt)
	}
	args = append(args, id, from)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE sub_tareas SET %s WHERE id=? AND estado=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return false, fmt.Errorf("update subtask status: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CancelPendingSubtasksTx cancels a project's unassigned sub-tasks.
func (r Repo) CancelPendingSubtasksTx(ctx context.Context, tx *sql.Tx, projectID int64, now string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE sub_tareas SET estado=?, updated_at=? WHERE proyecto_id=? AND estado=? AND vendedor_id IS NULL`,
		domain.SubtaskCancelled, now, projectID, domain.SubtaskPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AvailableFilters narrows the open sub-task pool.
type AvailableFilters struct {
	Specialty string
	Priority  string
}

// ListAvailableSubtasks returns pending, unassigned sub-tasks of projects that
// accept vendors, highest priority first then newest.
func (r Repo) ListAvailableSubtasks(ctx context.Context, f AvailableFilters) ([]domain.Subtask, error) {
	clauses := []string{"s.estado=?", "s.vendedor_id IS NULL", "p.fase IN (?,?)"}
	args := []any{domain.SubtaskPending, domain.PhasePublished, domain.PhaseInProgress}
	if f.Specialty != "" {
		clauses = append(clauses, "s.especialidad=?")
		args = append(args, f.Specialty)
	}
	if f.Priority != "" {
		clauses = append(clauses, "s.prioridad=?")
		args = append(args, f.Priority)
	}
	query := `SELECT ` + subtaskColumns + ` FROM sub_tareas s JOIN proyectos p ON p.id=s.proyecto_id WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY CASE s.prioridad WHEN 'ALTA' THEN 0 WHEN 'MEDIA' THEN 1 ELSE 2 END, s.created_at DESC, s.id DESC`
	return r.listSubtasks(ctx, r.DB, query, args...)
}

// ListVendorSubtasks returns a vendor's sub-tasks, optionally by state.
func (r Repo) ListVendorSubtasks(ctx context.Context, vendorID int64, status string) ([]domain.Subtask, error) {
	query := `SELECT ` + subtaskColumns + ` FROM sub_tareas s WHERE s.vendedor_id=?`
	args := []any{vendorID}
	if status != "" {
		query += ` AND s.estado=?`
		args = append(args, status)
	}
	query += ` ORDER BY s.updated_at DESC, s.id DESC`
	return r.listSubtasks(ctx, r.DB, query, args...)
}

func (r Repo) ListProjectSubtasks(ctx context.Context, projectID int64) ([]domain.Subtask, error) {
	return r.listSubtasks(ctx, r.DB, `SELECT `+subtaskColumns+` FROM sub_tareas s WHERE s.proyecto_id=? ORDER BY s.codigo ASC`, projectID)
}

func (r Repo) ListProjectSubtasksTx(ctx context.Context, tx *sql.Tx, projectID int64) ([]domain.Subtask, error) {
	return r.listSubtasks(ctx, tx, `SELECT `+subtaskColumns+` FROM sub_tareas s WHERE s.proyecto_id=? ORDER BY s.codigo ASC`, projectID)
}

func (r Repo) listSubtasks(ctx context.Context, q querier, query string, args ...any) ([]domain.Subtask, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Subtask{}
	for rows.Next() {
		s, err := scanSubtask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// VendorStats aggregates a vendor's assigned work.
type VendorStats struct {
	Total      int     `json:"total"`
	Assigned   int     `json:"asignadas"`
	InProgress int     `json:"en_progreso"`
	InReview   int     `json:"en_revision"`
	Completed  int     `json:"completadas"`
	Earned     float64 `json:"total_ganado"`
}

func (r Repo) VendorStats(ctx context.Context, vendorID int64) (VendorStats, error) {
	var st VendorStats
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*),
  COALESCE(SUM(CASE WHEN estado='ASIGNADA' THEN 1 ELSE 0 END),0),
  COALESCE(SUM(CASE WHEN estado='EN_PROGRESO' THEN 1 ELSE 0 END),0),
  COALESCE(SUM(CASE WHEN estado='EN_REVISION' THEN 1 ELSE 0 END),0),
  COALESCE(SUM(CASE WHEN estado='COMPLETADO' THEN 1 ELSE 0 END),0),
  COALESCE(SUM(pagado),0)
FROM sub_tareas WHERE vendedor_id=?`, vendorID).Scan(&st.Total, &st.Assigned, &st.InProgress, &st.InReview, &st.Completed, &st.Earned)
	return st, err
}
