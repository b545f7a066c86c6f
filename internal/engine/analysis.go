package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"conecta/internal/catalog"
	"conecta/internal/domain"
	"conecta/internal/events"
	"conecta/internal/llm"
	"conecta/internal/repo"
)

const (
	placeholderTitle       = "Proyecto en análisis..."
	placeholderDescription = "Análisis en progreso con IA"
)

type StartResult struct {
	ProjectID  int64  `json:"proyecto_id"`
	Reply      string `json:"respuesta_ia"`
	Finished   bool   `json:"finalizado"`
	TokensUsed int    `json:"tokens_usados"`
}

// StartAnalysis opens a project in ANALISIS with the client's first message
// and returns the model's opening reply. A failed model call removes the
// project again.
func (e Engine) StartAnalysis(ctx context.Context, clientID int64, message string) (StartResult, error) {
	message = strings.TrimSpace(message)
	if clientID <= 0 {
		return StartResult{}, InputError{Field: "cliente_id", Reason: "must be positive"}
	}
	if message == "" {
		return StartResult{}, InputError{Field: "mensaje_inicial", Reason: "required"}
	}
	now := e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return StartResult{}, err
	}
	defer tx.Rollback()
	p, err := e.Repo.InsertProjectTx(ctx, tx, domain.Project{
		ClientID:    clientID,
		Title:       placeholderTitle,
		Description: placeholderDescription,
		Specialty:   domain.SpecialtyOther,
		Status:      domain.StatusPending,
		Phase:       domain.PhaseAnalysis,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return StartResult{}, err
	}
	if _, err := e.Repo.InsertTurnTx(ctx, tx, e.clientTurn(p, message, now)); err != nil {
		return StartResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return StartResult{}, err
	}

	resp, err := e.complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: message}}, false)
	if err != nil {
		e.discardProject(ctx, p.ID)
		return StartResult{}, ExternalServiceError{Err: err}
	}
	reply := strings.TrimSpace(resp.Text)
	if c, ok := parseReply(resp.Text).(continuing); ok && c.Text != "" {
		reply = c.Text
	}
	if err := e.storeOpeningReply(ctx, p, reply, resp.TokensUsed); err != nil {
		e.discardProject(ctx, p.ID)
		return StartResult{}, err
	}
	e.Metrics.AnalysisTurn("continuing")
	e.log().Info("analysis started", "proyecto_id", p.ID, "cliente_id", clientID, "tokens", resp.TokensUsed)
	return StartResult{ProjectID: p.ID, Reply: reply, Finished: false, TokensUsed: resp.TokensUsed}, nil
}

func (e Engine) storeOpeningReply(ctx context.Context, p domain.Project, reply string, tokens int) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := e.Repo.InsertTurnTx(ctx, tx, e.aiTurn(p, reply, tokens, false, false, e.stamp())); err != nil {
		return err
	}
	if err := e.emit(ctx, tx, "project.created", p.ID, "project", p.ID, events.Actor("cliente", p.ClientID), events.EventPayload{"fase": p.Phase}); err != nil {
		return err
	}
	return tx.Commit()
}

// discardProject is the compensating delete for a failed StartAnalysis. It
// runs even when ctx is already cancelled.
func (e Engine) discardProject(ctx context.Context, id int64) {
	if err := e.Repo.DeleteProject(context.WithoutCancel(ctx), id); err != nil && !errors.Is(err, repo.ErrNotFound) {
		e.log().Error("discard project failed", "proyecto_id", id, "error", err)
	}
}

type ContinueResult struct {
	ProjectID  int64            `json:"proyecto_id"`
	Reply      string           `json:"respuesta_ia"`
	Finished   bool             `json:"finalizado"`
	Project    *domain.Project  `json:"proyecto,omitempty"`
	Subtasks   []domain.Subtask `json:"subtareas,omitempty"`
	Summary    string           `json:"resumen,omitempty"`
	TokensUsed int              `json:"tokens_usados"`
	Warnings   []string         `json:"advertencias,omitempty"`
}

// ContinueAnalysis sends the next client message. When the model returns a
// complete decomposition the sub-tasks are materialized in the same
// transaction as the turns.
func (e Engine) ContinueAnalysis(ctx context.Context, projectID int64, message string) (ContinueResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ContinueResult{}, InputError{Field: "mensaje", Reason: "required"}
	}
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return ContinueResult{}, notFound(err, "proyecto", projectID)
	}
	if p.Phase != domain.PhaseAnalysis {
		return ContinueResult{}, invalidState("project %d is %s; analysis only continues in %s", p.ID, p.Phase, domain.PhaseAnalysis)
	}
	turns, err := e.Repo.ListTurns(ctx, p.ID, domain.ConversationAnalysis)
	if err != nil {
		return ContinueResult{}, err
	}
	history := historyFromTurns(turns)
	history = append(history, llm.Message{Role: llm.RoleUser, Content: message})
	strict := e.strictMode(history, turns)

	resp, err := e.complete(ctx, history, strict)
	if err != nil {
		return ContinueResult{}, ExternalServiceError{Err: err}
	}

	reply := parseReply(resp.Text)
	var (
		dec      Decomposition
		warnings []string
	)
	if t, ok := reply.(terminal); ok {
		cfg := e.analysisConfig()
		dec, warnings, err = ValidateDecomposition(t.Draft, ValidateOptions{
			FallbackSpecialty:    cfg.FallbackSpecialty,
			DefaultEstimateHours: cfg.DefaultEstimateHours,
		})
		if err != nil {
			reply = continuing{Text: readyQuestion, Ready: true, Err: MalformedPayloadError{Reason: err.Error()}}
		}
		for _, w := range warnings {
			e.log().Warn("decomposition adjusted", "proyecto_id", p.ID, "warning", w)
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ContinueResult{}, err
	}
	defer tx.Rollback()
	cur, err := e.Repo.GetProjectTx(ctx, tx, p.ID)
	if err != nil {
		return ContinueResult{}, notFound(err, "proyecto", p.ID)
	}
	if cur.Phase != domain.PhaseAnalysis {
		return ContinueResult{}, invalidState("project %d left %s during the analysis call", p.ID, domain.PhaseAnalysis)
	}
	now := e.stamp()
	if _, err := e.Repo.InsertTurnTx(ctx, tx, e.clientTurn(cur, message, now)); err != nil {
		return ContinueResult{}, err
	}
	actor := events.Actor("cliente", cur.ClientID)
	res := ContinueResult{ProjectID: cur.ID, TokensUsed: resp.TokensUsed}

	switch r := reply.(type) {
	case continuing:
		if r.Err != nil {
			e.log().Warn("terminal reply unusable, continuing", "proyecto_id", cur.ID, "error", r.Err)
		}
		text := r.Text
		if text == "" {
			text = readyQuestion
		}
		if _, err := e.Repo.InsertTurnTx(ctx, tx, e.aiTurn(cur, text, resp.TokensUsed, strict, r.Ready, now)); err != nil {
			return ContinueResult{}, err
		}
		if err := e.emit(ctx, tx, "analysis.turn", cur.ID, "project", cur.ID, actor, events.EventPayload{"modo_estricto": strict, "listo": r.Ready}); err != nil {
			return ContinueResult{}, err
		}
		if err := tx.Commit(); err != nil {
			return ContinueResult{}, err
		}
		outcome := "continuing"
		if r.Ready {
			outcome = "malformed"
		}
		e.Metrics.AnalysisTurn(outcome)
		res.Reply = text
		return res, nil
	case terminal:
		if _, err := e.Repo.InsertTurnTx(ctx, tx, e.aiTurn(cur, strings.TrimSpace(resp.Text), resp.TokensUsed, strict, true, now)); err != nil {
			return ContinueResult{}, err
		}
		updated, subtasks, err := e.materialize(ctx, tx, cur, dec, actor, now)
		if err != nil {
			return ContinueResult{}, err
		}
		if err := tx.Commit(); err != nil {
			return ContinueResult{}, err
		}
		e.Metrics.AnalysisTurn("terminal")
		e.log().Info("analysis completed", "proyecto_id", cur.ID, "subtareas", len(subtasks), "warnings", len(warnings))
		res.Reply = terminalReply
		res.Finished = true
		res.Project = &updated
		res.Subtasks = subtasks
		res.Summary = Summary(dec)
		res.Warnings = warnings
		return res, nil
	}
	return ContinueResult{}, fmt.Errorf("unexpected reply %T", reply)
}

// materialize stores a validated decomposition: analysis snapshot, project
// fields and one sub-task per item. Earlier unassigned sub-tasks are replaced.
func (e Engine) materialize(ctx context.Context, tx *sql.Tx, p domain.Project, dec Decomposition, actor, now string) (domain.Project, []domain.Subtask, error) {
	snapshot, err := json.Marshal(dec)
	if err != nil {
		return p, nil, fmt.Errorf("marshal decomposition: %w", err)
	}
	rec, err := e.Repo.InsertAnalysisTx(ctx, tx, domain.AnalysisRecord{
		ProjectID:       p.ID,
		PayloadJSON:     string(snapshot),
		Specialties:     dec.Specialties(),
		EstimatedBudget: dec.Budget,
		EstimatedDays:   dec.EstimatedDays,
		Completed:       true,
		CreatedAt:       now,
	})
	if err != nil {
		return p, nil, err
	}
	if _, err := e.Repo.DeleteUnassignedSubtasksTx(ctx, tx, p.ID); err != nil {
		return p, nil, err
	}

	codes := make(map[string]string, len(dec.Subtasks))
	for i, st := range dec.Subtasks {
		codes[st.Code] = fmt.Sprintf("P%d-TASK-%03d", p.ID, i+1)
	}
	subtasks := make([]domain.Subtask, 0, len(dec.Subtasks))
	for _, st := range dec.Subtasks {
		code := codes[st.Code]
		deps := []string{}
		for _, dep := range st.Dependencies {
			mapped, ok := codes[dep]
			if !ok || mapped == code {
				e.log().Warn("dependency dropped", "proyecto_id", p.ID, "codigo", code, "dependencia", dep)
				continue
			}
			deps = append(deps, mapped)
		}
		saved, err := e.Repo.InsertSubtaskTx(ctx, tx, domain.Subtask{
			ProjectID:     p.ID,
			Code:          code,
			Title:         st.Title,
			Description:   st.Description,
			Specialty:     st.Specialty,
			Status:        domain.SubtaskPending,
			Priority:      st.Priority,
			EstimateHours: st.EstimateHours,
			Dependencies:  deps,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return p, nil, err
		}
		if err := e.emit(ctx, tx, "subtask.created", p.ID, "subtask", saved.ID, actor, events.EventPayload{"codigo": saved.Code, "especialidad": saved.Specialty}); err != nil {
			return p, nil, err
		}
		subtasks = append(subtasks, saved)
	}

	desc := dec.Description
	if desc == "" {
		desc = p.Description
	}
	if err := e.Repo.UpdateProjectAnalysisTx(ctx, tx, p.ID, repo.ProjectAnalysisUpdate{
		Title:              dec.Title,
		Description:        desc,
		UserStory:          dec.UserStory,
		AcceptanceCriteria: dec.AcceptanceCriteria,
		Specialty:          dec.Dominant(),
		Budget:             dec.Budget,
		EstimatedDays:      dec.EstimatedDays,
		TotalSubtasks:      len(subtasks),
		UpdatedAt:          now,
	}); err != nil {
		return p, nil, err
	}
	if err := e.emit(ctx, tx, "analysis.completed", p.ID, "analysis", rec.ID, actor, events.EventPayload{
		"version":        rec.Version,
		"subtareas":      len(subtasks),
		"especialidades": rec.Specialties,
	}); err != nil {
		return p, nil, err
	}
	updated, err := e.Repo.GetProjectTx(ctx, tx, p.ID)
	if err != nil {
		return p, nil, err
	}
	return updated, subtasks, nil
}

// complete calls the model with the analysis prompt.
func (e Engine) complete(ctx context.Context, history []llm.Message, strict bool) (llm.Response, error) {
	if e.LLM == nil {
		return llm.Response{}, errors.New("llm client not configured")
	}
	resp, err := e.LLM.Complete(ctx, llm.Request{System: promptFor(strict), Messages: history, JSONMode: strict})
	e.Metrics.LLMCall(err, resp.TokensUsed)
	if err != nil {
		e.log().Warn("llm call failed", "turns", len(history), "strict", strict, "error", err)
	}
	return resp, err
}

// strictMode asks for pure JSON once the history is long enough or the
// model has already said it is ready.
func (e Engine) strictMode(history []llm.Message, turns []domain.Turn) bool {
	if len(history) > e.analysisConfig().StrictJSONAfterTurns {
		return true
	}
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Emitter == domain.EmitterAI {
			ready, _ := turns[i].Metadata["listo"].(bool)
			return ready
		}
	}
	return false
}

func historyFromTurns(turns []domain.Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns)+1)
	for _, t := range turns {
		switch t.Emitter {
		case domain.EmitterClient:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: t.Message})
		case domain.EmitterAI:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: t.Message})
		}
	}
	return out
}

func (e Engine) clientTurn(p domain.Project, message, ts string) domain.Turn {
	return domain.Turn{
		ProjectID: p.ID,
		ClientID:  p.ClientID,
		Type:      domain.ConversationAnalysis,
		Emitter:   domain.EmitterClient,
		Message:   message,
		TS:        ts,
	}
}

func (e Engine) aiTurn(p domain.Project, message string, tokens int, strict, ready bool, ts string) domain.Turn {
	meta := map[string]any{
		"tokens_usados":  tokens,
		"costo_estimado": llm.CostUSD(tokens),
		"modo_estricto":  strict,
	}
	if ready {
		meta["listo"] = true
	}
	return domain.Turn{
		ProjectID: p.ID,
		ClientID:  p.ClientID,
		Type:      domain.ConversationAnalysis,
		Emitter:   domain.EmitterAI,
		Message:   message,
		Metadata:  meta,
		TS:        ts,
	}
}

type PublishResult struct {
	Project   domain.Project `json:"proyecto"`
	Published int            `json:"subtareas_publicadas"`
}

// PublishProject opens an analysed project to vendors and freezes its
// sub-task count.
func (e Engine) PublishProject(ctx context.Context, projectID int64) (PublishResult, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return PublishResult{}, err
	}
	defer tx.Rollback()
	p, err := e.Repo.GetProjectTx(ctx, tx, projectID)
	if err != nil {
		return PublishResult{}, notFound(err, "proyecto", projectID)
	}
	if err := ensurePhaseTransition(p.Phase, domain.PhasePublished); err != nil {
		return PublishResult{}, err
	}
	n, err := e.Repo.CountSubtasksTx(ctx, tx, p.ID, "")
	if err != nil {
		return PublishResult{}, err
	}
	if n == 0 {
		return PublishResult{}, ErrEmptyDecomposition
	}
	now := e.stamp()
	if err := e.Repo.SetProjectPhaseTx(ctx, tx, p.ID, domain.PhasePublished, domain.StatusPending, n, nil, now); err != nil {
		return PublishResult{}, err
	}
	if err := e.emit(ctx, tx, "project.published", p.ID, "project", p.ID, events.Actor("cliente", p.ClientID), events.EventPayload{"total_subtareas": n}); err != nil {
		return PublishResult{}, err
	}
	updated, err := e.Repo.GetProjectTx(ctx, tx, p.ID)
	if err != nil {
		return PublishResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return PublishResult{}, err
	}
	e.Metrics.Phase(domain.PhasePublished)
	e.log().Info("project published", "proyecto_id", p.ID, "subtareas", n)
	return PublishResult{Project: updated, Published: n}, nil
}

// History returns the analysis conversation in replay order.
func (e Engine) History(ctx context.Context, projectID int64) ([]domain.Turn, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return nil, notFound(err, "proyecto", projectID)
	}
	return e.Repo.ListTurns(ctx, projectID, domain.ConversationAnalysis)
}

func (e Engine) Specialties() []catalog.Specialty {
	return catalog.All()
}

func (e Engine) GetProject(ctx context.Context, projectID int64) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return p, notFound(err, "proyecto", projectID)
	}
	return p, nil
}

// ProjectEvents pages a project's audit log, newest first.
func (e Engine) ProjectEvents(ctx context.Context, projectID int64, limit int, beforeID int64) ([]domain.Event, error) {
	if _, err := e.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return e.Repo.LatestEvents(ctx, limit, beforeID, projectID, "")
}
