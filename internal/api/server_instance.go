package api

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/WarDekar/BB-Browser/internal/browser"
)

func registerInstanceHandlers(api huma.API, svc Service) {
	type createInstanceInput struct {
		Body struct {
			browser.InstanceConfig
			Session string `json:"session,omitempty" doc:"Session to restore after launch; missing sessions start fresh"`
		}
	}
	type instanceOutput struct {
		Body browser.InstanceInfo
	}
	huma.Register(api, huma.Operation{OperationID: "create-instance", Method: http.MethodPost, Path: "/api/v1/instances", Summary: "Create a browser instance", Tags: []string{"Instances"}},
		func(ctx context.Context, input *createInstanceInput) (*instanceOutput, error) {
			info, err := svc.CreateInstance(ctx, input.Body.InstanceConfig, input.Body.Session)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &instanceOutput{}
			out.Body = info
			return out, nil
		})

	type listInstancesOutput struct {
		Body struct {
			Instances []browser.InstanceInfo `json:"instances"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-instances", Method: http.MethodGet, Path: "/api/v1/instances", Summary: "List browser instances", Tags: []string{"Instances"}},
		func(ctx context.Context, input *struct{}) (*listInstancesOutput, error) {
			out := &listInstancesOutput{}
			out.Body.Instances = svc.ListInstances(ctx)
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-instance", Method: http.MethodGet, Path: "/api/v1/instances/{name}", Summary: "Get one instance", Tags: []string{"Instances"}},
		func(ctx context.Context, input *instanceNameInput) (*instanceOutput, error) {
			info, err := svc.GetInstance(ctx, input.Name)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &instanceOutput{}
			out.Body = info
			return out, nil
		})

	type statusOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "close-instance", Method: http.MethodDelete, Path: "/api/v1/instances/{name}", Summary: "Close one instance", Tags: []string{"Instances"}},
		func(ctx context.Context, input *instanceNameInput) (*statusOutput, error) {
			if err := svc.CloseInstance(ctx, input.Name); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "closed"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "close-all-instances", Method: http.MethodDelete, Path: "/api/v1/instances", Summary: "Close every instance", Tags: []string{"Instances"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.CloseAllInstances(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "closed"
			return out, nil
		})

	type pageOutput struct {
		Body browser.PageInfo
	}
	huma.Register(api, huma.Operation{OperationID: "new-page", Method: http.MethodPost, Path: "/api/v1/instances/{name}/pages", Summary: "Open a new page", Tags: []string{"Pages"}},
		func(ctx context.Context, input *instanceNameInput) (*pageOutput, error) {
			info, err := svc.NewPage(ctx, input.Name)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &pageOutput{}
			out.Body = info
			return out, nil
		})

	type gotoInput struct {
		Name string `path:"name"`
		Body struct {
			URL string `json:"url" doc:"Absolute URL to navigate the current page to"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "goto", Method: http.MethodPost, Path: "/api/v1/instances/{name}/goto", Summary: "Navigate the current page", Tags: []string{"Pages"}},
		func(ctx context.Context, input *gotoInput) (*statusOutput, error) {
			if err := svc.Goto(ctx, input.Name, input.Body.URL); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	type contentOutput struct {
		Body struct {
			Content string `json:"content"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "page-content", Method: http.MethodGet, Path: "/api/v1/instances/{name}/content", Summary: "Get current page HTML", Tags: []string{"Pages"}},
		func(ctx context.Context, input *instanceNameInput) (*contentOutput, error) {
			html, err := svc.Content(ctx, input.Name)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &contentOutput{}
			out.Body.Content = html
			return out, nil
		})

	type screenshotInput struct {
		Name     string `path:"name"`
		FullPage bool   `query:"full_page" default:"false" doc:"Capture the full scroll height instead of the viewport"`
	}
	type screenshotOutput struct {
		Body struct {
			Format string `json:"format"`
			Data   string `json:"data" doc:"Base64-encoded PNG"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "screenshot", Method: http.MethodGet, Path: "/api/v1/instances/{name}/screenshot", Summary: "Screenshot the current page", Tags: []string{"Pages"}},
		func(ctx context.Context, input *screenshotInput) (*screenshotOutput, error) {
			data, err := svc.Screenshot(ctx, input.Name, input.FullPage)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &screenshotOutput{}
			out.Body.Format = "png"
			out.Body.Data = base64.StdEncoding.EncodeToString(data)
			return out, nil
		})

	type evalInput struct {
		Name string `path:"name"`
		Body struct {
			Script string `json:"script" doc:"JavaScript expression evaluated on the current page"`
		}
	}
	type evalOutput struct {
		Body struct {
			Result any `json:"result"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "eval", Method: http.MethodPost, Path: "/api/v1/instances/{name}/eval", Summary: "Evaluate JavaScript", Tags: []string{"Pages"}},
		func(ctx context.Context, input *evalInput) (*evalOutput, error) {
			result, err := svc.Eval(ctx, input.Name, input.Body.Script)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &evalOutput{}
			out.Body.Result = result
			return out, nil
		})

	type fillInput struct {
		Name string `path:"name"`
		Body struct {
			Selector string `json:"selector"`
			Value    string `json:"value"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "fill", Method: http.MethodPost, Path: "/api/v1/instances/{name}/fill", Summary: "Fill a form field", Tags: []string{"Pages"}},
		func(ctx context.Context, input *fillInput) (*statusOutput, error) {
			if err := svc.Fill(ctx, input.Name, input.Body.Selector, input.Body.Value); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	type clickInput struct {
		Name string `path:"name"`
		Body struct {
			Selector string `json:"selector"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "click", Method: http.MethodPost, Path: "/api/v1/instances/{name}/click", Summary: "Click an element", Tags: []string{"Pages"}},
		func(ctx context.Context, input *clickInput) (*statusOutput, error) {
			if err := svc.Click(ctx, input.Name, input.Body.Selector); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "ok"
			return out, nil
		})
}
