// Package health serves liveness, readiness and build information for the
// scanport service.
//
// Components register a CheckFunc with a Checker. Readiness runs every
// check concurrently, each under the checker timeout, and reports
// "degraded" with HTTP 503 when any check fails:
//
//	checker := health.New(2 * time.Second)
//	checker.Register("history", func(ctx context.Context) error {
//	    _, err := store.List(ctx, "", 1)
//	    return err
//	})
//	health.Mount(mux, checker, health.BuildInfo{Version: "0.1.0"})
//
// Mount registers:
//   - /healthz: the process is alive
//   - /readyz: every registered check passes
//   - /version: build information
package health
