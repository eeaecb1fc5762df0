// Package fault decides when a configured failure rule replaces the real
// backend response.
//
// Every request that reaches a rule past its method filter increments a
// process-wide counter keyed by "METHOD:path". The count and every
// conditions compare against that counter, probability draws from a
// random source, and delay blocks the request before the synthetic
// response is returned. The first rule that fires wins.
//
//	inj := fault.NewInjector()
//	if rule, ok := inj.Evaluate(ctx, endpoint.FailureRules, r.Method, r.URL.Path); ok {
//	    // write rule.Response
//	}
package fault
