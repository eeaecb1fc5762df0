// Package config provides configuration types and loading for the
// fault-injecting debug proxy.
//
// The configuration names one or more targets. Exactly one of them is
// active: either the only one declared or the one named by active_target.
// Each target lists endpoints matched in declaration order, and each
// endpoint may carry failure rules.
//
// # Features
//
//   - YAML configuration file loading with defaults
//   - ${VAR} and ${VAR:-default} substitution in target header values
//   - Validation with path-tagged error reporting
//   - File watching that posts reload requests for hot-reload
//
// # Configuration Loading
//
//	cfg, err := config.LoadAndValidate("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # File Watching
//
//	watcher, err := config.NewWatcher(path, config.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = watcher.Start(ctx)
//	for range watcher.Requests() {
//	    // reload
//	}
package config
