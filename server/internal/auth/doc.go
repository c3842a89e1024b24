// Package auth enforces API key authentication on both server surfaces.
//
// APIKeyInterceptor guards the gRPC ReadingService used by agents;
// APIKeyMiddleware guards the REST API. Both pass everything through when
// mode is not "apikey" or no key is configured, which keeps local development
// friction-free. Keys are compared in constant time.
package auth
