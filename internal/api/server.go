// Package api exposes the agent over HTTP using huma on a chi router.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/WarDekar/BB-Browser/internal/browser"
	"github.com/WarDekar/BB-Browser/internal/config"
	"github.com/WarDekar/BB-Browser/internal/session"
	"github.com/WarDekar/BB-Browser/internal/workflow"
)

type Service interface {
	CreateInstance(ctx context.Context, cfg browser.InstanceConfig, sessionName string) (browser.InstanceInfo, error)
	ListInstances(ctx context.Context) []browser.InstanceInfo
	GetInstance(ctx context.Context, name string) (browser.InstanceInfo, error)
	CloseInstance(ctx context.Context, name string) error
	CloseAllInstances(ctx context.Context) error
	NewPage(ctx context.Context, name string) (browser.PageInfo, error)
	Goto(ctx context.Context, name, url string) error
	Content(ctx context.Context, name string) (string, error)
	Screenshot(ctx context.Context, name string, fullPage bool) ([]byte, error)
	Eval(ctx context.Context, name, script string) (any, error)
	Fill(ctx context.Context, name, selector, value string) error
	Click(ctx context.Context, name, selector string) error
	SaveSession(ctx context.Context, instanceName, sessionName string) (*session.Record, error)
	LoadSession(ctx context.Context, instanceName, sessionName string) error
	ListSessions(ctx context.Context) ([]string, error)
	GetSession(ctx context.Context, name string) (*session.Record, error)
	DeleteSession(ctx context.Context, name string) error
	ListSites(ctx context.Context) []workflow.SiteConfig
	UpsertSite(ctx context.Context, cfg workflow.SiteConfig) error
	DeleteSite(ctx context.Context, id string) error
	InitSite(ctx context.Context, id string) (workflow.StatusInfo, error)
	LoginSite(ctx context.Context, id string) (workflow.Result[workflow.LoginInfo], error)
	SiteStatus(ctx context.Context, id string) (workflow.StatusInfo, error)
	SiteStatuses(ctx context.Context) []workflow.StatusInfo
	CloseSite(ctx context.Context, id string) error
	ListProxies(ctx context.Context) ([]config.ProxyEntry, error)
	UpsertProxy(ctx context.Context, entry config.ProxyEntry) error
	DeleteProxy(ctx context.Context, id string) error
	Events() *browser.Hub
}

type instanceNameInput struct {
	Name string `path:"name" doc:"Instance name"`
}

type siteIDInput struct {
	ID string `path:"id" doc:"Site ID"`
}

func NewServer(svc Service) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("BB Browser Agent API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/api/v1/events/ws", eventsHandler(svc))

	registerHealthHandlers(api, svc)
	registerInstanceHandlers(api, svc)
	registerSessionHandlers(api, svc)
	registerSiteHandlers(api, svc)

	return router
}

func registerHealthHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status    string `json:"status"`
			Instances int    `json:"instances"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.Instances = len(svc.ListInstances(ctx))
			return out, nil
		})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *browser.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case browser.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case browser.CodeInstanceNotFound, browser.CodeSessionNotFound, browser.CodeSiteNotFound, browser.CodeWorkflowNotRegistered:
			return huma.Error404NotFound(coded.Message)
		case browser.CodeDuplicateName:
			return huma.Error409Conflict(coded.Message)
		case browser.CodeNotLaunched, browser.CodeNoPage:
			return huma.Error409Conflict(coded.Message)
		case browser.CodeEngineFailure:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
