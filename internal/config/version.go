package config

// Version is the panelsync binary version.
// Set at build time via: -ldflags "-X github.com/gamecafe/panelsync/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
