package engine

import (
	"context"
	"database/sql"

	"conecta/internal/domain"
	"conecta/internal/events"
)

const (
	reasonOtherVendor     = "El cliente eligió a otro vendedor"
	reasonProjectCanceled = "Proyecto cancelado"
)

func ensurePhaseTransition(from, to string) error {
	switch from {
	case domain.PhaseAnalysis:
		if to == domain.PhasePublished || to == domain.PhaseCancelled {
			return nil
		}
	case domain.PhasePublished:
		if to == domain.PhaseInProgress || to == domain.PhaseCancelled {
			return nil
		}
	case domain.PhaseInProgress:
		if to == domain.PhaseCompleted || to == domain.PhaseCancelled {
			return nil
		}
	}
	return invalidState("invalid project phase transition %s -> %s", from, to)
}

// ensureAcceptingVendors guards every assignment path.
func ensureAcceptingVendors(p domain.Project) error {
	if p.Phase == domain.PhasePublished || p.Phase == domain.PhaseInProgress {
		return nil
	}
	return invalidState("project %d is %s; sub-tasks can only be assigned while %s or %s", p.ID, p.Phase, domain.PhasePublished, domain.PhaseInProgress)
}

// startOnFirstAssignment moves a published project to EN_PROGRESO. It is a
// no-op when the project already left PUBLICADO.
func (e Engine) startOnFirstAssignment(ctx context.Context, tx *sql.Tx, projectID int64, actor, now string) error {
	moved, err := e.Repo.AdvancePhaseTx(ctx, tx, projectID, domain.PhasePublished, domain.PhaseInProgress, domain.StatusInProgress, now)
	if err != nil || !moved {
		return err
	}
	e.Metrics.Phase(domain.PhaseInProgress)
	return e.emit(ctx, tx, "project.started", projectID, "project", projectID, actor, events.EventPayload{"fase": domain.PhaseInProgress})
}

// recordCompletion recounts completed sub-tasks and closes the project once
// all of them are done.
func (e Engine) recordCompletion(ctx context.Context, tx *sql.Tx, projectID int64, actor, now string) error {
	p, err := e.Repo.GetProjectTx(ctx, tx, projectID)
	if err != nil {
		return notFound(err, "proyecto", projectID)
	}
	done, err := e.Repo.CountSubtasksTx(ctx, tx, projectID, domain.SubtaskCompleted)
	if err != nil {
		return err
	}
	total := p.TotalSubtasks
	completed := min(done, total)
	progress := 0
	if total > 0 {
		progress = completed * 100 / total
	}
	if err := e.Repo.UpdateProjectProgressTx(ctx, tx, projectID, completed, progress, now); err != nil {
		return err
	}
	if total == 0 || completed < total || p.Phase != domain.PhaseInProgress {
		return nil
	}
	if err := ensurePhaseTransition(p.Phase, domain.PhaseCompleted); err != nil {
		return err
	}
	if err := e.Repo.SetProjectPhaseTx(ctx, tx, projectID, domain.PhaseCompleted, domain.StatusCompleted, -1, &now, now); err != nil {
		return err
	}
	e.Metrics.Phase(domain.PhaseCompleted)
	e.log().Info("project completed", "proyecto_id", projectID, "subtareas", total)
	return e.emit(ctx, tx, "project.completed", projectID, "project", projectID, actor, events.EventPayload{"total_subtareas": total})
}

type CancelResult struct {
	Project          domain.Project `json:"proyecto"`
	CanceledSubtasks int64          `json:"subtareas_canceladas"`
	RejectedRequests int64          `json:"solicitudes_rechazadas"`
}

// CancelProject stops a project that has not finished. Unassigned sub-tasks
// are cancelled and open requests rejected.
func (e Engine) CancelProject(ctx context.Context, projectID int64, actor string) (CancelResult, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return CancelResult{}, err
	}
	defer tx.Rollback()
	p, err := e.Repo.GetProjectTx(ctx, tx, projectID)
	if err != nil {
		return CancelResult{}, notFound(err, "proyecto", projectID)
	}
	if err := ensurePhaseTransition(p.Phase, domain.PhaseCancelled); err != nil {
		return CancelResult{}, err
	}
	now := e.stamp()
	if err := e.Repo.SetProjectPhaseTx(ctx, tx, p.ID, domain.PhaseCancelled, domain.StatusCancelled, -1, nil, now); err != nil {
		return CancelResult{}, err
	}
	subtasks, err := e.Repo.CancelPendingSubtasksTx(ctx, tx, p.ID, now)
	if err != nil {
		return CancelResult{}, err
	}
	rejected, err := e.Repo.RejectPendingForProjectTx(ctx, tx, p.ID, reasonProjectCanceled, now)
	if err != nil {
		return CancelResult{}, err
	}
	if actor == "" {
		actor = events.Actor("cliente", p.ClientID)
	}
	if err := e.emit(ctx, tx, "project.cancelled", p.ID, "project", p.ID, actor, events.EventPayload{
		"desde":                  p.Phase,
		"subtareas_canceladas":   subtasks,
		"solicitudes_rechazadas": rejected,
	}); err != nil {
		return CancelResult{}, err
	}
	updated, err := e.Repo.GetProjectTx(ctx, tx, p.ID)
	if err != nil {
		return CancelResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return CancelResult{}, err
	}
	e.Metrics.Phase(domain.PhaseCancelled)
	e.Metrics.WorkRequest("auto_rejected", int(rejected))
	e.log().Info("project cancelled", "proyecto_id", p.ID, "from", p.Phase)
	return CancelResult{Project: updated, CanceledSubtasks: subtasks, RejectedRequests: rejected}, nil
}
