// Package config loads the server-side configuration from the `server:`
// section of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - GRPCPort, HTTPPort  listeners (default 50051 / 8080)
//   - LogLevel            debug | info | warn | error (default info)
//   - Auth                API key mode, env var and header name
//   - Risk.Weights        per-metric score coefficients (default 0.40/0.35/0.25)
//   - Storage             memory | sqlite backend and database path
//   - Equipment           catalog file and whether to hot-reload it
//   - Notify              WebSocket stats interval, push timeout, Kafka, webhooks
//
// Load(path) applies defaults before unmarshalling, then validates. Secrets
// are never stored in the file; *_env fields name environment variables.
package config
