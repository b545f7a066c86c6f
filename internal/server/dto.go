package server

import (
	"conecta/internal/catalog"
	"conecta/internal/domain"
	"conecta/internal/engine"
	"conecta/internal/repo"
)

// Request payloads

type StartAnalysisRequest struct {
	ClientID int64  `json:"cliente_id" minimum:"1"`
	Message  string `json:"mensaje" minLength:"1"`
}

type ContinueAnalysisRequest struct {
	ProjectID int64  `json:"proyecto_id" minimum:"1"`
	Message   string `json:"mensaje" minLength:"1"`
}

type PublishProjectRequest struct {
	ProjectID int64 `json:"proyecto_id" minimum:"1"`
}

type AcceptSubtaskRequest struct {
	SubtaskID int64 `json:"subtarea_id" minimum:"1"`
	VendorID  int64 `json:"vendedor_id" minimum:"1"`
}

type UpdateProgressRequest struct {
	SubtaskID int64  `json:"subtarea_id" minimum:"1"`
	VendorID  int64  `json:"vendedor_id" minimum:"1"`
	Status    string `json:"estado" enum:"EN_PROGRESO,EN_REVISION,COMPLETADO"`
	Notes     string `json:"notas,omitempty"`
}

type SendRequestRequest struct {
	SubtaskID int64  `json:"subtarea_id" minimum:"1"`
	VendorID  int64  `json:"vendedor_id" minimum:"1"`
	Message   string `json:"mensaje,omitempty"`
}

type RespondRequestRequest struct {
	Action string `json:"accion" doc:"ACEPTAR or RECHAZAR"`
	Reason string `json:"motivo_rechazo,omitempty"`
}

// Responses. Every success body carries exito=true.

type StartAnalysisResponse struct {
	Success bool `json:"exito"`
	engine.StartResult
}

type ContinueAnalysisResponse struct {
	Success bool `json:"exito"`
	engine.ContinueResult
}

type PublishProjectResponse struct {
	Success   bool   `json:"exito"`
	Message   string `json:"mensaje"`
	ProjectID int64  `json:"proyecto_id"`
	engine.PublishResult
}

type HistoryResponse struct {
	Success  bool          `json:"exito"`
	Total    int           `json:"total_mensajes"`
	Messages []domain.Turn `json:"mensajes"`
}

type SpecialtiesResponse struct {
	Success     bool                `json:"exito"`
	Specialties []catalog.Specialty `json:"especialidades"`
}

type SubtaskListResponse struct {
	Success  bool             `json:"exito"`
	Total    int              `json:"total"`
	Subtasks []domain.Subtask `json:"subtareas"`
}

type BoardResponse struct {
	Success bool `json:"exito"`
	engine.Board
}

type VendorStatsResponse struct {
	Success bool               `json:"exito"`
	Stats   engine.VendorStats `json:"estadisticas"`
}

type SubtaskResponse struct {
	Success bool           `json:"exito"`
	Message string         `json:"mensaje,omitempty"`
	Subtask domain.Subtask `json:"subtarea"`
}

type SubtaskDetailResponse struct {
	Success bool `json:"exito"`
	engine.SubtaskDetail
}

type WorkRequestResponse struct {
	Success bool               `json:"exito"`
	Request domain.WorkRequest `json:"solicitud"`
}

type WorkRequestListResponse struct {
	Success  bool               `json:"exito"`
	Total    int                `json:"total"`
	Requests []repo.RequestView `json:"solicitudes"`
}

type RespondRequestResponse struct {
	Success bool   `json:"exito"`
	Message string `json:"mensaje"`
	engine.RespondResult
}

type ProjectResponse struct {
	Success bool           `json:"exito"`
	Project domain.Project `json:"proyecto"`
}

type CancelProjectResponse struct {
	Success bool `json:"exito"`
	engine.CancelResult
}

type EventListResponse struct {
	Success    bool           `json:"exito"`
	Events     []domain.Event `json:"eventos"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
