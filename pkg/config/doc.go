// Package config loads kitman's layered configuration.
//
// Sources are merged in increasing priority: the embedded defaults, the
// user file (config.toml or config.yaml in the kitman config directory),
// KITMAN_* environment variables and finally command-line overrides.
// Nested keys are addressed in the environment with a double underscore,
// so KITMAN_REGISTRY__URL sets registry.url.
package config
