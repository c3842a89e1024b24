// Package receiver implements rpc.ReadingServiceServer, the gRPC endpoint
// that accepts sensor readings from riskwatch-agent instances.
//
// SubmitReading validates the reading (codes.InvalidArgument listing every
// problem), runs it through the risk pipeline and returns the assessment.
// Alert history failures map to codes.Unavailable so agents retry.
// Authentication is enforced upstream by the gRPC server interceptor (see
// package auth).
package receiver
