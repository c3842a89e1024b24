// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent}: the `agent:` tree parsed from YAML
//   - AgentConfig: server_endpoint, scrape_interval, buffer_size, log_level,
//     sources [], server_auth
//   - Source: id, endpoint, equipment_label, metrics overrides, auth, tls
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env; Key() and Token() resolve from the environment
//
// Load(path) reads the YAML file, applies defaults (30s scrape, 1000 buffer,
// equipment_* gauge names), then validates required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It re-adds the watch after each
// event so atomic-save editors (vim, VS Code) keep being tracked.
package config
