// Package shipper submits sensor readings to riskwatch-server via gRPC
// (ReadingService.SubmitReading unary RPC, JSON codec from pkg/rpc).
//
// Shipper.Ship() is non-blocking: readings are placed in an in-memory channel
// (default capacity 1000). When the buffer is full the oldest entry is
// evicted so the latest readings are always preserved.
//
// Shipper.Run() drains the buffer in a loop, reconnecting with truncated
// exponential backoff (1s→60s, ±25% jitter) on connection or send errors.
// A reading that failed transiently is retried first after reconnecting, so
// per-equipment order is kept. Permanent gRPC errors (Unauthenticated,
// PermissionDenied, InvalidArgument) discard the reading immediately.
//
// Auth: mTLS via credentials.NewTLS(), API key via gRPC metadata header,
// or insecure (plaintext) for local development.
package shipper
