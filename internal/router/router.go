package router

import (
	"github.com/vyrodovalexey/faultproxy/internal/config"
)

// Match returns the first endpoint of the active target, in declared
// order, whose method set and path pattern both accept the request.
// The returned pointer refers into cfg and must not be modified.
func Match(cfg *config.Config, path, method string) (*config.Endpoint, bool) {
	if cfg == nil || cfg.Target == nil {
		return nil, false
	}

	endpoints := cfg.Target.Endpoints
	for i := range endpoints {
		ep := &endpoints[i]
		if !MatchMethod(ep.Methods, method) {
			continue
		}
		if MatchPath(ep.Path, path) {
			return ep, true
		}
	}
	return nil, false
}
