package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/WarDekar/BB-Browser/internal/config"
	"github.com/WarDekar/BB-Browser/internal/workflow"
)

func registerSiteHandlers(api huma.API, svc Service) {
	type listSitesOutput struct {
		Body struct {
			Sites []workflow.SiteConfig `json:"sites"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-sites", Method: http.MethodGet, Path: "/api/v1/sites", Summary: "List configured sites", Tags: []string{"Sites"}},
		func(ctx context.Context, input *struct{}) (*listSitesOutput, error) {
			out := &listSitesOutput{}
			out.Body.Sites = svc.ListSites(ctx)
			return out, nil
		})

	type upsertSiteInput struct {
		Body workflow.SiteConfig
	}
	type statusOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "upsert-site", Method: http.MethodPut, Path: "/api/v1/sites", Summary: "Create or replace a site", Tags: []string{"Sites"}},
		func(ctx context.Context, input *upsertSiteInput) (*statusOutput, error) {
			if err := svc.UpsertSite(ctx, input.Body); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-site", Method: http.MethodDelete, Path: "/api/v1/sites/{id}", Summary: "Delete a site", Tags: []string{"Sites"}},
		func(ctx context.Context, input *siteIDInput) (*statusOutput, error) {
			if err := svc.DeleteSite(ctx, input.ID); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "deleted"
			return out, nil
		})

	type siteStatusOutput struct {
		Body workflow.StatusInfo
	}
	huma.Register(api, huma.Operation{OperationID: "init-site", Method: http.MethodPost, Path: "/api/v1/sites/{id}/init", Summary: "Initialize the site's workflow", Tags: []string{"Sites"}},
		func(ctx context.Context, input *siteIDInput) (*siteStatusOutput, error) {
			info, err := svc.InitSite(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &siteStatusOutput{}
			out.Body = info
			return out, nil
		})

	type loginOutput struct {
		Body workflow.Result[workflow.LoginInfo]
	}
	huma.Register(api, huma.Operation{OperationID: "login-site", Method: http.MethodPost, Path: "/api/v1/sites/{id}/login", Summary: "Wait for a manual login to complete", Description: "Blocks while polling the site's logged-in indicator. Timing out is reported in the result body, not as an HTTP error.", Tags: []string{"Sites"}},
		func(ctx context.Context, input *siteIDInput) (*loginOutput, error) {
			result, err := svc.LoginSite(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &loginOutput{}
			out.Body = result
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "site-status", Method: http.MethodGet, Path: "/api/v1/sites/{id}/status", Summary: "Get one site's workflow status", Tags: []string{"Sites"}},
		func(ctx context.Context, input *siteIDInput) (*siteStatusOutput, error) {
			info, err := svc.SiteStatus(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &siteStatusOutput{}
			out.Body = info
			return out, nil
		})

	type siteStatusesOutput struct {
		Body struct {
			Workflows []workflow.StatusInfo `json:"workflows"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "site-statuses", Method: http.MethodGet, Path: "/api/v1/sites/status", Summary: "List live workflow statuses", Tags: []string{"Sites"}},
		func(ctx context.Context, input *struct{}) (*siteStatusesOutput, error) {
			out := &siteStatusesOutput{}
			out.Body.Workflows = svc.SiteStatuses(ctx)
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "close-site", Method: http.MethodPost, Path: "/api/v1/sites/{id}/close", Summary: "Close the site's workflow and instance", Tags: []string{"Sites"}},
		func(ctx context.Context, input *siteIDInput) (*statusOutput, error) {
			if err := svc.CloseSite(ctx, input.ID); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "closed"
			return out, nil
		})

	type listProxiesOutput struct {
		Body struct {
			Proxies []config.ProxyEntry `json:"proxies"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-proxies", Method: http.MethodGet, Path: "/api/v1/proxies", Summary: "List proxy definitions", Tags: []string{"Proxies"}},
		func(ctx context.Context, input *struct{}) (*listProxiesOutput, error) {
			proxies, err := svc.ListProxies(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listProxiesOutput{}
			out.Body.Proxies = proxies
			return out, nil
		})

	type upsertProxyInput struct {
		Body config.ProxyEntry
	}
	huma.Register(api, huma.Operation{OperationID: "upsert-proxy", Method: http.MethodPut, Path: "/api/v1/proxies", Summary: "Create or replace a proxy", Tags: []string{"Proxies"}},
		func(ctx context.Context, input *upsertProxyInput) (*statusOutput, error) {
			if err := svc.UpsertProxy(ctx, input.Body); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	type proxyIDInput struct {
		ID string `path:"id" doc:"Proxy ID"`
	}
	huma.Register(api, huma.Operation{OperationID: "delete-proxy", Method: http.MethodDelete, Path: "/api/v1/proxies/{id}", Summary: "Delete a proxy", Tags: []string{"Proxies"}},
		func(ctx context.Context, input *proxyIDInput) (*statusOutput, error) {
			if err := svc.DeleteProxy(ctx, input.ID); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "deleted"
			return out, nil
		})
}
