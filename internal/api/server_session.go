package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/WarDekar/BB-Browser/internal/session"
)

func registerSessionHandlers(api huma.API, svc Service) {
	type saveSessionInput struct {
		Name string `path:"name" doc:"Instance name"`
		Body struct {
			Session string `json:"session" doc:"Session name to save under"`
		}
	}
	type sessionOutput struct {
		Body session.Record
	}
	huma.Register(api, huma.Operation{OperationID: "save-session", Method: http.MethodPost, Path: "/api/v1/instances/{name}/session/save", Summary: "Save the instance's session state", Tags: []string{"Sessions"}},
		func(ctx context.Context, input *saveSessionInput) (*sessionOutput, error) {
			rec, err := svc.SaveSession(ctx, input.Name, input.Body.Session)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &sessionOutput{}
			out.Body = *rec
			return out, nil
		})

	type loadSessionInput struct {
		Name string `path:"name" doc:"Instance name"`
		Body struct {
			Session string `json:"session" doc:"Session name to restore"`
		}
	}
	type statusOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "load-session", Method: http.MethodPost, Path: "/api/v1/instances/{name}/session/load", Summary: "Restore a saved session into the instance", Tags: []string{"Sessions"}},
		func(ctx context.Context, input *loadSessionInput) (*statusOutput, error) {
			if err := svc.LoadSession(ctx, input.Name, input.Body.Session); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "loaded"
			return out, nil
		})

	type listSessionsOutput struct {
		Body struct {
			Sessions []string `json:"sessions"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-sessions", Method: http.MethodGet, Path: "/api/v1/sessions", Summary: "List saved sessions", Tags: []string{"Sessions"}},
		func(ctx context.Context, input *struct{}) (*listSessionsOutput, error) {
			names, err := svc.ListSessions(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listSessionsOutput{}
			out.Body.Sessions = names
			return out, nil
		})

	type sessionNameInput struct {
		Name string `path:"name" doc:"Session name"`
	}
	huma.Register(api, huma.Operation{OperationID: "get-session", Method: http.MethodGet, Path: "/api/v1/sessions/{name}", Summary: "Get one saved session", Tags: []string{"Sessions"}},
		func(ctx context.Context, input *sessionNameInput) (*sessionOutput, error) {
			rec, err := svc.GetSession(ctx, input.Name)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &sessionOutput{}
			out.Body = *rec
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-session", Method: http.MethodDelete, Path: "/api/v1/sessions/{name}", Summary: "Delete a saved session", Tags: []string{"Sessions"}},
		func(ctx context.Context, input *sessionNameInput) (*statusOutput, error) {
			if err := svc.DeleteSession(ctx, input.Name); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "deleted"
			return out, nil
		})
}
