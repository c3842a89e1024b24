// Package api implements the HTTP REST API for riskwatch-server.
//
// New(deps) returns a chi router serving:
//
//	POST /api/v1/readings                          score one reading (201)
//	GET  /api/v1/equipment                         catalog entries
//	GET  /api/v1/equipment/{id}/risk/latest        newest alert event; 404 if none
//	GET  /api/v1/equipment/{id}/risk/history       alert events, newest first (?limit=100)
//	GET  /api/v1/alerts                            recent alerts (?level=&limit=50)
//	GET  /api/v1/dashboard/stats                   equipment counts by latest level
//	GET  /api/v1/health                            liveness
//	GET  /metrics                                  Prometheus exposition
//	GET  /ws/alerts                                dashboard WebSocket, when configured
//
// Every response is JSON. Errors use {"error": "..."}; validation failures
// add "problems". Every request gets an X-Request-ID, a structured log line
// and request metrics; panics are recovered into 500s.
package api
