// Package health serves liveness, readiness and health reports for the
// metrics listener.
//
// Checks are registered by name and evaluated on every request:
//
//	checker := health.NewChecker(version)
//	checker.RegisterCheck("gateway", func() health.Check {
//	    return health.Check{Status: health.StatusHealthy}
//	})
//
//	mux.HandleFunc("/health", checker.HealthHandler())
//	mux.HandleFunc("/ready", checker.ReadinessHandler())
//	mux.HandleFunc("/live", checker.LivenessHandler())
package health
