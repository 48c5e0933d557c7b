package tls

import "context"

// bgCtx is used by background components (the DCS, the reconciler's daily
// timer) that log outside the scope of any caller-supplied context.
func bgCtx() context.Context {
	return context.Background()
}
