/*
Package config loads deployment settings for causegraph runtimes from YAML
or JSON files.

# Overview

The package is deliberately small: a Settings value carrying the runtime's
knobs (ledger ID, default approval timeout and strategy, journal path),
defaults for everything, and loaders that fail loudly on values a runtime
cannot honor. Settings files that misspell a strategy or write a malformed
timeout are rejected at load time rather than silently falling back.

# Basic Usage

	settings, err := config.Load("causegraph.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	rt := causegraph.NewRuntime(causegraph.WithSettings[string](settings))

The approval_timeout key accepts either a Go duration string ("90s") or a
bare number of seconds.
*/
package config
