package engine

import (
	"context"
	"strings"

	"conecta/internal/domain"
	"conecta/internal/events"
	"conecta/internal/repo"
)

// SendRequest records a vendor's interest in an open sub-task. The sub-task
// stays in the pool; several vendors may wait on it at once.
func (e Engine) SendRequest(ctx context.Context, subtaskID, vendorID int64, message string) (domain.WorkRequest, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkRequest{}, err
	}
	defer tx.Rollback()
	s, err := e.Repo.GetSubtaskTx(ctx, tx, subtaskID)
	if err != nil {
		return domain.WorkRequest{}, notFound(err, "subtarea", subtaskID)
	}
	v, err := e.Repo.GetVendorTx(ctx, tx, vendorID)
	if err != nil {
		return domain.WorkRequest{}, notFound(err, "vendedor", vendorID)
	}
	if !available(s) {
		return domain.WorkRequest{}, invalidState("sub-task %d is %s and no longer accepts requests", s.ID, s.Status)
	}
	p, err := e.Repo.GetProjectTx(ctx, tx, s.ProjectID)
	if err != nil {
		return domain.WorkRequest{}, err
	}
	if err := ensureAcceptingVendors(p); err != nil {
		return domain.WorkRequest{}, err
	}
	dup, err := e.Repo.HasPendingRequestTx(ctx, tx, s.ID, v.ID)
	if err != nil {
		return domain.WorkRequest{}, err
	}
	if dup {
		return domain.WorkRequest{}, ErrDuplicateRequest
	}
	w, err := e.Repo.InsertRequestTx(ctx, tx, domain.WorkRequest{
		SubtaskID:   s.ID,
		VendorID:    v.ID,
		Status:      domain.RequestPending,
		Message:     strings.TrimSpace(message),
		RequestedAt: e.stamp(),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WorkRequest{}, ErrDuplicateRequest
		}
		return domain.WorkRequest{}, err
	}
	if err := e.emit(ctx, tx, "request.sent", s.ProjectID, "request", w.ID, events.Actor("vendedor", v.ID), events.EventPayload{"subtarea_id": s.ID}); err != nil {
		return domain.WorkRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WorkRequest{}, err
	}
	e.Metrics.WorkRequest("sent", 1)
	e.log().Info("request sent", "solicitud_id", w.ID, "subtarea_id", s.ID, "vendedor_id", v.ID)
	return w, nil
}

type RespondResult struct {
	Request      domain.WorkRequest `json:"solicitud"`
	Subtask      domain.Subtask     `json:"subtarea"`
	AutoRejected int64              `json:"solicitudes_rechazadas"`
	Pending      int                `json:"solicitudes_pendientes"`
}

// RespondRequest is the client's answer to a work request. Accepting assigns
// the sub-task and rejects every other pending request on it atomically.
func (e Engine) RespondRequest(ctx context.Context, requestID int64, action, reason string) (RespondResult, error) {
	action = strings.ToUpper(strings.TrimSpace(action))
	if action != domain.ActionAccept && action != domain.ActionReject {
		return RespondResult{}, InvalidActionError{Action: action}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return RespondResult{}, err
	}
	defer tx.Rollback()
	w, err := e.Repo.GetRequestTx(ctx, tx, requestID)
	if err != nil {
		return RespondResult{}, notFound(err, "solicitud", requestID)
	}
	if w.Status != domain.RequestPending {
		return RespondResult{}, invalidState("request %d already responded (%s)", w.ID, w.Status)
	}
	s, err := e.Repo.GetSubtaskTx(ctx, tx, w.SubtaskID)
	if err != nil {
		return RespondResult{}, notFound(err, "subtarea", w.SubtaskID)
	}
	p, err := e.Repo.GetProjectTx(ctx, tx, s.ProjectID)
	if err != nil {
		return RespondResult{}, notFound(err, "proyecto", s.ProjectID)
	}
	actor := events.Actor("cliente", p.ClientID)
	now := e.stamp()
	res := RespondResult{}

	switch action {
	case domain.ActionAccept:
		if err := ensureAcceptingVendors(p); err != nil {
			return RespondResult{}, err
		}
		if !available(s) {
			return RespondResult{}, ErrNoLongerAvailable
		}
		if err := ensureSubtaskTransition(s.Status, domain.SubtaskAssigned); err != nil {
			return RespondResult{}, err
		}
		ok, err := e.Repo.AssignSubtaskTx(ctx, tx, s.ID, w.VendorID, now)
		if err != nil {
			return RespondResult{}, err
		}
		if !ok {
			return RespondResult{}, ErrNoLongerAvailable
		}
		if ok, err := e.Repo.RespondRequestTx(ctx, tx, w.ID, domain.RequestAccepted, "", now); err != nil || !ok {
			if err == nil {
				err = invalidState("request %d already responded", w.ID)
			}
			return RespondResult{}, err
		}
		if res.AutoRejected, err = e.Repo.RejectPendingForSubtaskTx(ctx, tx, s.ID, w.ID, reasonOtherVendor, now); err != nil {
			return RespondResult{}, err
		}
		if err := e.startOnFirstAssignment(ctx, tx, p.ID, actor, now); err != nil {
			return RespondResult{}, err
		}
		if err := e.emit(ctx, tx, "request.accepted", p.ID, "request", w.ID, actor, events.EventPayload{
			"subtarea_id":            s.ID,
			"vendedor_id":            w.VendorID,
			"solicitudes_rechazadas": res.AutoRejected,
		}); err != nil {
			return RespondResult{}, err
		}
		if err := e.emit(ctx, tx, "subtask.assigned", p.ID, "subtask", s.ID, actor, events.EventPayload{"vendedor_id": w.VendorID, "via": "request"}); err != nil {
			return RespondResult{}, err
		}
	case domain.ActionReject:
		if ok, err := e.Repo.RespondRequestTx(ctx, tx, w.ID, domain.RequestRejected, strings.TrimSpace(reason), now); err != nil || !ok {
			if err == nil {
				err = invalidState("request %d already responded", w.ID)
			}
			return RespondResult{}, err
		}
		if res.Pending, err = e.Repo.CountPendingForSubtaskTx(ctx, tx, s.ID); err != nil {
			return RespondResult{}, err
		}
		if err := e.emit(ctx, tx, "request.rejected", p.ID, "request", w.ID, actor, events.EventPayload{"subtarea_id": s.ID, "motivo": strings.TrimSpace(reason)}); err != nil {
			return RespondResult{}, err
		}
	}

	if res.Request, err = e.Repo.GetRequestTx(ctx, tx, w.ID); err != nil {
		return RespondResult{}, err
	}
	if res.Subtask, err = e.Repo.GetSubtaskTx(ctx, tx, s.ID); err != nil {
		return RespondResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return RespondResult{}, err
	}
	if action == domain.ActionAccept {
		e.Metrics.Assigned("request")
		e.Metrics.WorkRequest("accepted", 1)
		e.Metrics.WorkRequest("auto_rejected", int(res.AutoRejected))
	} else {
		e.Metrics.WorkRequest("rejected", 1)
	}
	e.log().Info("request answered", "solicitud_id", w.ID, "accion", action, "auto_rejected", res.AutoRejected)
	return res, nil
}

// ProjectRequests lists the pending requests on a project's sub-tasks.
func (e Engine) ProjectRequests(ctx context.Context, projectID int64) ([]repo.RequestView, error) {
	if _, err := e.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return e.Repo.ListPendingProjectRequests(ctx, projectID)
}

func (e Engine) VendorRequests(ctx context.Context, vendorID int64) ([]repo.RequestView, error) {
	if _, err := e.Repo.GetVendor(ctx, vendorID); err != nil {
		return nil, notFound(err, "vendedor", vendorID)
	}
	return e.Repo.ListVendorRequests(ctx, vendorID)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
