package repo

import (
	"context"
	"database/sql"
	"fmt"

	"conecta/internal/domain"
)

const requestColumns = `r.id,r.subtarea_id,r.vendedor_id,r.estado,COALESCE(r.mensaje,''),COALESCE(r.motivo_rechazo,''),r.fecha_solicitud,r.fecha_respuesta`

func scanRequest(row scanner, extra ...any) (domain.WorkRequest, error) {
	var (
		w         domain.WorkRequest
		responded sql.NullString
	)
	dest := append([]any{&w.ID, &w.SubtaskID, &w.VendorID, &w.Status, &w.Message, &w.RejectReason, &w.RequestedAt, &responded}, extra...)
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return w, ErrNotFound
		}
		return w, err
	}
	w.RespondedAt = stringPtr(responded)
	return w, nil
}

func (r Repo) InsertRequestTx(ctx context.Context, tx *sql.Tx, w domain.WorkRequest) (domain.WorkRequest, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO solicitudes_subtarea(subtarea_id,vendedor_id,estado,mensaje,fecha_solicitud) VALUES (?,?,?,?,?)`,
		w.SubtaskID, w.VendorID, w.Status, nullable(w.Message), w.RequestedAt)
	if err != nil {
		return w, fmt.Errorf("insert request: %w", err)
	}
	w.ID, err = res.LastInsertId()
	return w, err
}

func (r Repo) GetRequest(ctx context.Context, id int64) (domain.WorkRequest, error) {
	return r.getRequest(ctx, r.DB, id)
}

func (r Repo) GetRequestTx(ctx context.Context, tx *sql.Tx, id int64) (domain.WorkRequest, error) {
	return r.getRequest(ctx, tx, id)
}

func (r Repo) getRequest(ctx context.Context, q querier, id int64) (domain.WorkRequest, error) {
	return scanRequest(q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM solicitudes_subtarea r WHERE r.id=?`, id))
}

// HasPendingRequestTx reports whether the vendor already waits on this sub-task.
func (r Repo) HasPendingRequestTx(ctx context.Context, tx *sql.Tx, subtaskID, vendorID int64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM solicitudes_subtarea WHERE subtarea_id=? AND vendedor_id=? AND estado=?`,
		subtaskID, vendorID, domain.RequestPending).Scan(&n)
	return n > 0, err
}

// RespondRequestTx resolves a pending request. It reports false when the
// request was already answered.
func (r Repo) RespondRequestTx(ctx context.Context, tx *sql.Tx, id int64, status, reason, now string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE solicitudes_subtarea SET estado=?, motivo_rechazo=?, fecha_respuesta=? WHERE id=? AND estado=?`,
		status, nullable(reason), now, id, domain.RequestPending)
	if err != nil {
		return false, fmt.Errorf("respond request: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// AcceptVendorRequestTx marks the vendor's own pending request on the sub-task
// as accepted, if there is one.
func (r Repo) AcceptVendorRequestTx(ctx context.Context, tx *sql.Tx, subtaskID, vendorID int64, now string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE solicitudes_subtarea SET estado=?, fecha_respuesta=? WHERE subtarea_id=? AND vendedor_id=? AND estado=?`,
		domain.RequestAccepted, now, subtaskID, vendorID, domain.RequestPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RejectPendingForSubtaskTx rejects every other pending request on a sub-task.
func (r Repo) RejectPendingForSubtaskTx(ctx context.Context, tx *sql.Tx, subtaskID, exceptID int64, reason, now string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE solicitudes_subtarea SET estado=?, motivo_rechazo=?, fecha_respuesta=? WHERE subtarea_id=? AND id<>? AND estado=?`,
		domain.RequestRejected, reason, now, subtaskID, exceptID, domain.RequestPending)
	if err != nil {
		return 0, fmt.Errorf("reject competing requests: %w", err)
	}
	return res.RowsAffected()
}

// RejectPendingForProjectTx rejects every pending request on a project's sub-tasks.
func (r Repo) RejectPendingForProjectTx(ctx context.Context, tx *sql.Tx, projectID int64, reason, now string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE solicitudes_subtarea SET estado=?, motivo_rechazo=?, fecha_respuesta=?
WHERE estado=? AND subtarea_id IN (SELECT id FROM sub_tareas WHERE proyecto_id=?)`,
		domain.RequestRejected, reason, now, domain.RequestPending, projectID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) CountPendingForSubtaskTx(ctx context.Context, tx *sql.Tx, subtaskID int64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM solicitudes_subtarea WHERE subtarea_id=? AND estado=?`, subtaskID, domain.RequestPending).Scan(&n)
	return n, err
}

// RequestView is a work request joined with its sub-task and vendor.
type RequestView struct {
	domain.WorkRequest
	SubtaskCode  string `json:"subtarea_codigo"`
	SubtaskTitle string `json:"subtarea_titulo"`
	ProjectID    int64  `json:"proyecto_id"`
	VendorName   string `json:"vendedor_nombre"`
	VendorEmail  string `json:"vendedor_correo"`
}

const requestViewFrom = ` FROM solicitudes_subtarea r
JOIN sub_tareas s ON s.id=r.subtarea_id
JOIN vendedores v ON v.id=r.vendedor_id`

// ListPendingProjectRequests returns open requests on a project's sub-tasks, newest first.
func (r Repo) ListPendingProjectRequests(ctx context.Context, projectID int64) ([]RequestView, error) {
	return r.listRequestViews(ctx, `SELECT `+requestColumns+`,s.codigo,s.titulo,s.proyecto_id,v.nombre,v.correo`+requestViewFrom+
		` WHERE s.proyecto_id=? AND r.estado=? ORDER BY r.fecha_solicitud DESC, r.id DESC`, projectID, domain.RequestPending)
}

// ListVendorRequests returns every request a vendor has sent, newest first.
func (r Repo) ListVendorRequests(ctx context.Context, vendorID int64) ([]RequestView, error) {
	return r.listRequestViews(ctx, `SELECT `+requestColumns+`,s.codigo,s.titulo,s.proyecto_id,v.nombre,v.correo`+requestViewFrom+
		` WHERE r.vendedor_id=? ORDER BY r.fecha_solicitud DESC, r.id DESC`, vendorID)
}

func (r Repo) listRequestViews(ctx context.Context, query string, args ...any) ([]RequestView, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []RequestView{}
	for rows.Next() {
		var v RequestView
		w, err := scanRequest(rows, &v.SubtaskCode, &v.SubtaskTitle, &v.ProjectID, &v.VendorName, &v.VendorEmail)
		if err != nil {
			return nil, err
		}
		v.WorkRequest = w
		res = append(res, v)
	}
	return res, rows.Err()
}
