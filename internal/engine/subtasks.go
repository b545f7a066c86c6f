package engine

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"conecta/internal/catalog"
	"conecta/internal/domain"
	"conecta/internal/events"
	"conecta/internal/repo"
)

func ensureSubtaskTransition(from, to string) error {
	switch from {
	case domain.SubtaskPending:
		if to == domain.SubtaskAssigned || to == domain.SubtaskCancelled {
			return nil
		}
	case domain.SubtaskAssigned:
		if to == domain.SubtaskInProgress || to == domain.SubtaskCompleted {
			return nil
		}
	case domain.SubtaskInProgress:
		if to == domain.SubtaskInReview || to == domain.SubtaskCompleted {
			return nil
		}
	case domain.SubtaskInReview:
		if to == domain.SubtaskCompleted || to == domain.SubtaskInProgress {
			return nil
		}
	}
	return invalidState("invalid sub-task transition %s -> %s", from, to)
}

func available(s domain.Subtask) bool {
	return s.VendorID == nil && s.Status == domain.SubtaskPending
}

// AcceptSubtask lets a vendor take an open sub-task directly. The vendor must
// hold the sub-task's specialty. Competing requests are rejected.
func (e Engine) AcceptSubtask(ctx context.Context, subtaskID, vendorID int64) (domain.Subtask, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Subtask{}, err
	}
	defer tx.Rollback()
	s, err := e.Repo.GetSubtaskTx(ctx, tx, subtaskID)
	if err != nil {
		return s, notFound(err, "subtarea", subtaskID)
	}
	if !available(s) {
		return s, ErrNoLongerAvailable
	}
	p, err := e.Repo.GetProjectTx(ctx, tx, s.ProjectID)
	if err != nil {
		return s, notFound(err, "proyecto", s.ProjectID)
	}
	if err := ensureAcceptingVendors(p); err != nil {
		return s, err
	}
	v, err := e.Repo.GetVendorTx(ctx, tx, vendorID)
	if err != nil {
		return s, notFound(err, "vendedor", vendorID)
	}
	specialty := catalog.NormalizeOr(s.Specialty, s.Specialty)
	if !catalog.Contains(v.Specialties, specialty) {
		return s, ForbiddenError{Reason: "vendor lacks specialty " + specialty}
	}
	if err := ensureSubtaskTransition(s.Status, domain.SubtaskAssigned); err != nil {
		return s, err
	}
	now := e.stamp()
	ok, err := e.Repo.AssignSubtaskTx(ctx, tx, s.ID, v.ID, now)
	if err != nil {
		return s, err
	}
	if !ok {
		return s, ErrNoLongerAvailable
	}
	own, err := e.Repo.AcceptVendorRequestTx(ctx, tx, s.ID, v.ID, now)
	if err != nil {
		return s, err
	}
	rejected, err := e.Repo.RejectPendingForSubtaskTx(ctx, tx, s.ID, 0, reasonOtherVendor, now)
	if err != nil {
		return s, err
	}
	actor := events.Actor("vendedor", v.ID)
	if err := e.startOnFirstAssignment(ctx, tx, p.ID, actor, now); err != nil {
		return s, err
	}
	if err := e.emit(ctx, tx, "subtask.assigned", p.ID, "subtask", s.ID, actor, events.EventPayload{
		"vendedor_id":            v.ID,
		"via":                    "self",
		"solicitudes_rechazadas": rejected,
	}); err != nil {
		return s, err
	}
	assigned, err := e.Repo.GetSubtaskTx(ctx, tx, s.ID)
	if err != nil {
		return s, err
	}
	if err := tx.Commit(); err != nil {
		return s, err
	}
	e.Metrics.Assigned("self")
	e.Metrics.WorkRequest("accepted", int(own))
	e.Metrics.WorkRequest("auto_rejected", int(rejected))
	e.log().Info("subtask accepted", "subtarea_id", s.ID, "vendedor_id", v.ID, "rejected", rejected)
	return assigned, nil
}

type ProgressOptions struct {
	SubtaskID int64
	VendorID  int64
	Status    string
	Notes     string
}

func knownSubtaskStatus(status string) bool {
	switch status {
	case domain.SubtaskPending, domain.SubtaskAssigned, domain.SubtaskInProgress, domain.SubtaskInReview,
		domain.SubtaskCompleted, domain.SubtaskRejected, domain.SubtaskCancelled:
		return true
	}
	return false
}

// UpdateProgress moves the caller's own sub-task forward. Completing it
// updates the project's counters in the same transaction.
func (e Engine) UpdateProgress(ctx context.Context, opts ProgressOptions) (domain.Subtask, error) {
	status := strings.ToUpper(strings.TrimSpace(opts.Status))
	if !knownSubtaskStatus(status) {
		return domain.Subtask{}, InputError{Field: "estado", Reason: "unknown sub-task state " + strconv.Quote(opts.Status)}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Subtask{}, err
	}
	defer tx.Rollback()
	s, err := e.Repo.GetSubtaskTx(ctx, tx, opts.SubtaskID)
	if err != nil {
		return s, notFound(err, "subtarea", opts.SubtaskID)
	}
	if s.VendorID == nil || *s.VendorID != opts.VendorID {
		return s, ForbiddenError{Reason: "sub-task is not assigned to this vendor"}
	}
	if err := ensureSubtaskTransition(s.Status, status); err != nil {
		return s, err
	}
	now := e.stamp()
	var startedAt, completedAt *string
	switch status {
	case domain.SubtaskInProgress:
		startedAt = &now
	case domain.SubtaskCompleted:
		completedAt = &now
	}
	ok, err := e.Repo.UpdateSubtaskStatusTx(ctx, tx, s.ID, s.Status, status, startedAt, completedAt, now)
	if err != nil {
		return s, err
	}
	if !ok {
		return s, invalidState("sub-task %d changed state concurrently", s.ID)
	}
	actor := events.Actor("vendedor", opts.VendorID)
	if notes := strings.TrimSpace(opts.Notes); notes != "" {
		p, err := e.Repo.GetProjectTx(ctx, tx, s.ProjectID)
		if err != nil {
			return s, err
		}
		vendorID := opts.VendorID
		if _, err := e.Repo.InsertTurnTx(ctx, tx, domain.Turn{
			ProjectID:     p.ID,
			ClientID:      p.ClientID,
			Type:          domain.ConversationProject,
			Emitter:       domain.EmitterVendor,
			ParticipantID: &vendorID,
			Message:       notes,
			Metadata:      map[string]any{"subtarea_id": s.ID, "estado": status},
			TS:            now,
		}); err != nil {
			return s, err
		}
	}
	if status == domain.SubtaskCompleted {
		if err := e.recordCompletion(ctx, tx, s.ProjectID, actor, now); err != nil {
			return s, err
		}
	}
	if err := e.emit(ctx, tx, "subtask.progress", s.ProjectID, "subtask", s.ID, actor, events.EventPayload{
		"desde":  s.Status,
		"estado": status,
		"notas":  strings.TrimSpace(opts.Notes),
	}); err != nil {
		return s, err
	}
	updated, err := e.Repo.GetSubtaskTx(ctx, tx, s.ID)
	if err != nil {
		return s, err
	}
	if err := tx.Commit(); err != nil {
		return s, err
	}
	e.log().Info("subtask progress", "subtarea_id", s.ID, "from", s.Status, "to", status)
	return updated, nil
}

// AvailableSubtasks lists the open pool. Filters accept names or codes.
func (e Engine) AvailableSubtasks(ctx context.Context, specialty, priority string) ([]domain.Subtask, error) {
	f := repo.AvailableFilters{}
	if strings.TrimSpace(specialty) != "" {
		code, ok := catalog.Normalize(specialty)
		if !ok {
			return []domain.Subtask{}, nil
		}
		f.Specialty = code
	}
	if strings.TrimSpace(priority) != "" {
		f.Priority = normalizePriority(priority)
	}
	return e.Repo.ListAvailableSubtasks(ctx, f)
}

func (e Engine) VendorSubtasks(ctx context.Context, vendorID int64, status string) ([]domain.Subtask, error) {
	if _, err := e.Repo.GetVendor(ctx, vendorID); err != nil {
		return nil, notFound(err, "vendedor", vendorID)
	}
	return e.Repo.ListVendorSubtasks(ctx, vendorID, strings.ToUpper(strings.TrimSpace(status)))
}

type Board struct {
	Project  domain.Project   `json:"proyecto"`
	Subtasks []domain.Subtask `json:"subtareas"`
	Counts   map[string]int   `json:"por_estado"`
	Progress int              `json:"progreso"`
}

// ProjectBoard returns a project's sub-tasks by code with per-state counts.
func (e Engine) ProjectBoard(ctx context.Context, projectID int64) (Board, error) {
	p, err := e.GetProject(ctx, projectID)
	if err != nil {
		return Board{}, err
	}
	subtasks, err := e.Repo.ListProjectSubtasks(ctx, projectID)
	if err != nil {
		return Board{}, err
	}
	counts := map[string]int{}
	for _, s := range subtasks {
		counts[s.Status]++
	}
	return Board{Project: p, Subtasks: subtasks, Counts: counts, Progress: p.Progress}, nil
}

type SubtaskDetail struct {
	Subtask domain.Subtask `json:"subtarea"`
	Project domain.Project `json:"proyecto"`
	Vendor  *domain.Vendor `json:"vendedor,omitempty"`
}

func (e Engine) SubtaskDetail(ctx context.Context, subtaskID int64) (SubtaskDetail, error) {
	s, err := e.Repo.GetSubtask(ctx, subtaskID)
	if err != nil {
		return SubtaskDetail{}, notFound(err, "subtarea", subtaskID)
	}
	p, err := e.Repo.GetProject(ctx, s.ProjectID)
	if err != nil {
		return SubtaskDetail{}, err
	}
	d := SubtaskDetail{Subtask: s, Project: p}
	if s.VendorID != nil {
		v, err := e.Repo.GetVendor(ctx, *s.VendorID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return d, err
		}
		if err == nil {
			d.Vendor = &v
		}
	}
	return d, nil
}

type VendorStats struct {
	repo.VendorStats
	CompletionRate int `json:"tasa_completacion"`
}

func (e Engine) VendorStats(ctx context.Context, vendorID int64) (VendorStats, error) {
	if _, err := e.Repo.GetVendor(ctx, vendorID); err != nil {
		return VendorStats{}, notFound(err, "vendedor", vendorID)
	}
	st, err := e.Repo.VendorStats(ctx, vendorID)
	if err != nil {
		return VendorStats{}, err
	}
	out := VendorStats{VendorStats: st}
	if st.Total > 0 {
		out.CompletionRate = st.Completed * 100 / st.Total
	}
	return out, nil
}
