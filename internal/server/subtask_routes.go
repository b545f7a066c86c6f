package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"conecta/internal/engine"
)

func registerSubtasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "subtasks-available",
		Method:      http.MethodGet,
		Path:        "/subtareas/disponibles",
		Summary:     "Open sub-tasks of published projects",
		Tags:        []string{"subtareas"},
	}, func(ctx context.Context, input *struct {
		Specialty string `query:"especialidad" doc:"Specialty name or code"`
		Priority  string `query:"prioridad"`
	}) (*struct {
		Body SubtaskListResponse `json:"body"`
	}, error) {
		items, err := e.AvailableSubtasks(ctx, input.Specialty, input.Priority)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body SubtaskListResponse `json:"body"`
		}{Body: SubtaskListResponse{Success: true, Total: len(items), Subtasks: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "subtasks-mine",
		Method:      http.MethodGet,
		Path:        "/subtareas/mis-subtareas/{vendedor_id}",
		Summary:     "Sub-tasks assigned to a vendor",
		Tags:        []string{"subtareas"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		VendorID int64  `path:"vendedor_id"`
		Status   string `query:"estado"`
	}) (*struct {
		Body SubtaskListResponse `json:"body"`
	}, error) {
		if err := requireVendor(ctx, input.VendorID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		items, err := e.VendorSubtasks(ctx, input.VendorID, input.Status)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body SubtaskListResponse `json:"body"`
		}{Body: SubtaskListResponse{Success: true, Total: len(items), Subtasks: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "subtasks-board",
		Method:      http.MethodGet,
		Path:        "/subtareas/proyecto/{proyecto_id}",
		Summary:     "A project's sub-tasks with per-state counts",
		Tags:        []string{"subtareas"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64 `path:"proyecto_id"`
	}) (*struct {
		Body BoardResponse `json:"body"`
	}, error) {
		if err := requireProjectOrVendor(ctx, e, input.ProjectID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		board, err := e.ProjectBoard(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body BoardResponse `json:"body"`
		}{Body: BoardResponse{Success: true, Board: board}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "subtasks-vendor-stats",
		Method:      http.MethodGet,
		Path:        "/subtareas/estadisticas/vendedor/{vendedor_id}",
		Summary:     "Vendor workload and completion rate",
		Tags:        []string{"subtareas"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		VendorID int64 `path:"vendedor_id"`
	}) (*struct {
		Body VendorStatsResponse `json:"body"`
	}, error) {
		if err := requireVendor(ctx, input.VendorID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		stats, err := e.VendorStats(ctx, input.VendorID)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body VendorStatsResponse `json:"body"`
		}{Body: VendorStatsResponse{Success: true, Stats: stats}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "subtasks-accept",
		Method:      http.MethodPost,
		Path:        "/subtareas/aceptar",
		Summary:     "Take an open sub-task directly",
		Tags:        []string{"subtareas"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body AcceptSubtaskRequest `json:"body"`
	}) (*struct {
		Body SubtaskResponse `json:"body"`
	}, error) {
		if err := requireVendor(ctx, input.Body.VendorID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		s, err := e.AcceptSubtask(ctx, input.Body.SubtaskID, input.Body.VendorID)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body SubtaskResponse `json:"body"`
		}{Body: SubtaskResponse{Success: true, Message: "Sub-tarea asignada", Subtask: s}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "subtasks-progress",
		Method:      http.MethodPut,
		Path:        "/subtareas/actualizar-progreso",
		Summary:     "Move an assigned sub-task forward",
		Tags:        []string{"subtareas"},
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body UpdateProgressRequest `json:"body"`
	}) (*struct {
		Body SubtaskResponse `json:"body"`
	}, error) {
		if err := requireVendor(ctx, input.Body.VendorID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		s, err := e.UpdateProgress(ctx, engine.ProgressOptions{
			SubtaskID: input.Body.SubtaskID,
			VendorID:  input.Body.VendorID,
			Status:    input.Body.Status,
			Notes:     input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body SubtaskResponse `json:"body"`
		}{Body: SubtaskResponse{Success: true, Message: "Progreso actualizado", Subtask: s}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "subtasks-get",
		Method:      http.MethodGet,
		Path:        "/subtareas/{subtarea_id}",
		Summary:     "Sub-task with its project and vendor",
		Tags:        []string{"subtareas"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SubtaskID int64 `path:"subtarea_id"`
	}) (*struct {
		Body SubtaskDetailResponse `json:"body"`
	}, error) {
		d, err := e.SubtaskDetail(ctx, input.SubtaskID)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body SubtaskDetailResponse `json:"body"`
		}{Body: SubtaskDetailResponse{Success: true, SubtaskDetail: d}}, nil
	})
}
