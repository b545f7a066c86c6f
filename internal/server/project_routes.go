package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"conecta/internal/engine"
)

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "project-get",
		Method:      http.MethodGet,
		Path:        "/proyectos/{proyecto_id}",
		Summary:     "Read a project",
		Tags:        []string{"proyectos"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64 `path:"proyecto_id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		if err := requireProjectOrVendor(ctx, e, input.ProjectID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		p, err := e.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: ProjectResponse{Success: true, Project: p}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-cancel",
		Method:      http.MethodPost,
		Path:        "/proyectos/{proyecto_id}/cancelar",
		Summary:     "Cancel an unfinished project",
		Tags:        []string{"proyectos"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID int64 `path:"proyecto_id"`
	}) (*struct {
		Body CancelProjectResponse `json:"body"`
	}, error) {
		if err := requireProjectOwner(ctx, e, input.ProjectID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		res, err := e.CancelProject(ctx, input.ProjectID, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body CancelProjectResponse `json:"body"`
		}{Body: CancelProjectResponse{Success: true, CancelResult: res}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-events",
		Method:      http.MethodGet,
		Path:        "/proyectos/{proyecto_id}/eventos",
		Summary:     "Project audit log, newest first",
		Tags:        []string{"proyectos"},
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64  `path:"proyecto_id"`
		Limit     int    `query:"limit" default:"50"`
		Cursor    string `query:"cursor"`
	}) (*struct {
		Body EventListResponse `json:"body"`
	}, error) {
		if err := requireProjectOwner(ctx, e, input.ProjectID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || parsed <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.ProjectEvents(ctx, input.ProjectID, limit+1, cursorID)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		resp := EventListResponse{Success: true, Events: items}
		if len(items) > limit {
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
			resp.Events = items[:limit]
		}
		return &struct {
			Body EventListResponse `json:"body"`
		}{Body: resp}, nil
	})
}
