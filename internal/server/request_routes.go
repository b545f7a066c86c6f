package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"conecta/internal/domain"
	"conecta/internal/engine"
)

func registerRequests(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "requests-send",
		Method:        http.MethodPost,
		Path:          "/solicitudes/enviar",
		Summary:       "Ask to work on an open sub-task",
		Tags:          []string{"solicitudes"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body SendRequestRequest `json:"body"`
	}) (*struct {
		Body WorkRequestResponse `json:"body"`
	}, error) {
		if err := requireVendor(ctx, input.Body.VendorID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		w, err := e.SendRequest(ctx, input.Body.SubtaskID, input.Body.VendorID, input.Body.Message)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body WorkRequestResponse `json:"body"`
		}{Body: WorkRequestResponse{Success: true, Request: w}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "requests-project",
		Method:      http.MethodGet,
		Path:        "/solicitudes/proyecto/{proyecto_id}",
		Summary:     "Pending requests on a project's sub-tasks",
		Tags:        []string{"solicitudes"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64 `path:"proyecto_id"`
	}) (*struct {
		Body WorkRequestListResponse `json:"body"`
	}, error) {
		if err := requireProjectOwner(ctx, e, input.ProjectID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		items, err := e.ProjectRequests(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body WorkRequestListResponse `json:"body"`
		}{Body: WorkRequestListResponse{Success: true, Total: len(items), Requests: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "requests-vendor",
		Method:      http.MethodGet,
		Path:        "/solicitudes/vendedor/{vendedor_id}",
		Summary:     "A vendor's requests and their answers",
		Tags:        []string{"solicitudes"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		VendorID int64 `path:"vendedor_id"`
	}) (*struct {
		Body WorkRequestListResponse `json:"body"`
	}, error) {
		if err := requireVendor(ctx, input.VendorID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		items, err := e.VendorRequests(ctx, input.VendorID)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body WorkRequestListResponse `json:"body"`
		}{Body: WorkRequestListResponse{Success: true, Total: len(items), Requests: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "requests-respond",
		Method:      http.MethodPut,
		Path:        "/solicitudes/{solicitud_id}/responder",
		Summary:     "Accept or reject a work request",
		Tags:        []string{"solicitudes"},
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		RequestID int64                 `path:"solicitud_id"`
		Body      RespondRequestRequest `json:"body"`
	}) (*struct {
		Body RespondRequestResponse `json:"body"`
	}, error) {
		if err := requireRequestOwner(ctx, e, input.RequestID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		res, err := e.RespondRequest(ctx, input.RequestID, input.Body.Action, input.Body.Reason)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		msg := "Solicitud rechazada"
		if res.Request.Status == domain.RequestAccepted {
			msg = "Solicitud aceptada y sub-tarea asignada"
		}
		return &struct {
			Body RespondRequestResponse `json:"body"`
		}{Body: RespondRequestResponse{Success: true, Message: msg, RespondResult: res}}, nil
	})
}

// requireRequestOwner resolves the project behind a request and checks its client.
func requireRequestOwner(ctx context.Context, e engine.Engine, requestID int64) error {
	if _, ok := principalFromContext(ctx); !ok {
		return nil
	}
	w, err := e.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	s, err := e.Repo.GetSubtask(ctx, w.SubtaskID)
	if err != nil {
		return err
	}
	return requireProjectOwner(ctx, e, s.ProjectID)
}
