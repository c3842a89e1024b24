// Package ws implements the dashboard WebSocket hub for riskwatch-server.
//
// Hub keeps a set of connected clients and sends them two kinds of messages:
//
//	{"event": "stats",  "data": { /* GET /api/v1/dashboard/stats */ }}
//	{"event": "alerts", "data": { /* one HIGH or CRITICAL assessment */ }}
//
// stats is sent on connect and then on every tick of Run. Anything passed to
// Publish is sent immediately under its topic name. Clients whose outgoing
// buffer is full are disconnected rather than allowed to stall a broadcast.
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The server mounts the hub at /ws/alerts.
package ws
