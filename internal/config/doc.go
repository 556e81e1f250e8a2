// Package config provides configuration types and loading for slipway.
//
// # Configuration File
//
// Settings are loaded from a TOML file, by default
// ~/.config/slipway/config.toml:
//
//	[provider]
//	api_url = "https://api.sandboxes.example.com"
//	api_key = "sk-..."          # or SLIPWAY_PROVIDER_API_KEY
//	template = "node22"
//
//	[sandbox]
//	ttl_minutes = 30
//	dev_server_port = 5173
//	settle_timeout_seconds = 8
//	install_timeout_seconds = 120
//	command_timeout_seconds = 60
//
// Missing sections fall back to defaults; the provider API key is the only
// required value and may come from the environment instead of the file.
//
// # Validation
//
// Config implements Validate() to check for required fields and sane
// durations. Loading functions validate after parsing.
//
// # Paths
//
// Paths holds the local state directory layout used by the file-backed
// project store.
package config
