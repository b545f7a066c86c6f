package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"conecta/internal/engine"
)

func registerAnalysis(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "analysis-start",
		Method:        http.MethodPost,
		Path:          "/chat-analisis/iniciar",
		Summary:       "Start a requirements conversation",
		Tags:          []string{"chat-analisis"},
		DefaultStatus: http.StatusOK,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body StartAnalysisRequest `json:"body"`
	}) (*struct {
		Body StartAnalysisResponse `json:"body"`
	}, error) {
		if err := requireClient(ctx, input.Body.ClientID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		res, err := e.StartAnalysis(ctx, input.Body.ClientID, input.Body.Message)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body StartAnalysisResponse `json:"body"`
		}{Body: StartAnalysisResponse{Success: true, StartResult: res}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "analysis-continue",
		Method:      http.MethodPost,
		Path:        "/chat-analisis/continuar",
		Summary:     "Answer the assistant; may finish the decomposition",
		Tags:        []string{"chat-analisis"},
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body ContinueAnalysisRequest `json:"body"`
	}) (*struct {
		Body ContinueAnalysisResponse `json:"body"`
	}, error) {
		if err := requireProjectOwner(ctx, e, input.Body.ProjectID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		res, err := e.ContinueAnalysis(ctx, input.Body.ProjectID, input.Body.Message)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body ContinueAnalysisResponse `json:"body"`
		}{Body: ContinueAnalysisResponse{Success: true, ContinueResult: res}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "analysis-publish",
		Method:      http.MethodPost,
		Path:        "/chat-analisis/publicar",
		Summary:     "Publish a decomposed project to vendors",
		Tags:        []string{"chat-analisis"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body PublishProjectRequest `json:"body"`
	}) (*struct {
		Body PublishProjectResponse `json:"body"`
	}, error) {
		if err := requireProjectOwner(ctx, e, input.Body.ProjectID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		res, err := e.PublishProject(ctx, input.Body.ProjectID)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body PublishProjectResponse `json:"body"`
		}{Body: PublishProjectResponse{
			Success:       true,
			Message:       "Proyecto publicado exitosamente",
			ProjectID:     res.Project.ID,
			PublishResult: res,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "analysis-history",
		Method:      http.MethodGet,
		Path:        "/chat-analisis/historial/{proyecto_id}",
		Summary:     "Analysis conversation in order",
		Tags:        []string{"chat-analisis"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID int64 `path:"proyecto_id"`
	}) (*struct {
		Body HistoryResponse `json:"body"`
	}, error) {
		if err := requireProjectOwner(ctx, e, input.ProjectID); err != nil {
			return nil, handleError(ctx, e, err)
		}
		turns, err := e.History(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(ctx, e, err)
		}
		return &struct {
			Body HistoryResponse `json:"body"`
		}{Body: HistoryResponse{Success: true, Total: len(turns), Messages: turns}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "analysis-specialties",
		Method:      http.MethodGet,
		Path:        "/chat-analisis/especialidades",
		Summary:     "Specialty catalog",
		Tags:        []string{"chat-analisis"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body SpecialtiesResponse `json:"body"`
	}, error) {
		return &struct {
			Body SpecialtiesResponse `json:"body"`
		}{Body: SpecialtiesResponse{Success: true, Specialties: e.Specialties()}}, nil
	})
}
