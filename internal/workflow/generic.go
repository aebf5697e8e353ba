package workflow

import (
	"context"

	"github.com/WarDekar/BB-Browser/internal/browser"
)

// NewGeneric builds a workflow whose login predicate is the site's
// configured CSS selector. Sites without a selector never report
// logged-in, which keeps login() bounded by its timeout.
func NewGeneric(deps Deps, site SiteConfig) Workflow {
	if site.LoggedInSelector == "" {
		return NewSiteWorkflow(deps, site, func(ctx context.Context, inst *browser.Instance) (bool, error) {
			return false, nil
		})
	}
	return NewSiteWorkflow(deps, site, selectorProbe(site.LoggedInSelector))
}
