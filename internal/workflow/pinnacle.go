package workflow

import (
	"context"

	"github.com/WarDekar/BB-Browser/internal/browser"
)

// pinnacleLoggedInScript looks for the account menu that only renders
// for an authenticated user, with the balance header as a fallback for
// older page builds.
const pinnacleLoggedInScript = `(() => {
	if (document.querySelector('[data-test-id="userMenu"]')) return true;
	if (document.querySelector('[data-gtm-id="account_menu"]')) return true;
	return document.querySelector('.account-balance') !== null;
})()`

// NewPinnacle builds the workflow for pinnacle sportsbook sites.
func NewPinnacle(deps Deps, site SiteConfig) Workflow {
	return NewSiteWorkflow(deps, site, func(ctx context.Context, inst *browser.Instance) (bool, error) {
		v, err := inst.Eval(ctx, pinnacleLoggedInScript)
		if err != nil {
			return false, err
		}
		b, ok := v.(bool)
		return ok && b, nil
	})
}
