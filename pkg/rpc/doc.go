// Package rpc defines the ReadingService gRPC contract shared by
// riskwatch-agent (client) and riskwatch-server (server).
//
// Messages are plain Go structs carried with a JSON codec registered under
// the "json" content-subtype, so no protoc step is needed:
//
//	/riskwatch.v1.ReadingService/SubmitReading
//	  SubmitReadingRequest  { reading }
//	  SubmitReadingResponse { ok, risk_level, risk_score, reason, event_id, reading_id }
//
// Clients created with NewReadingServiceClient select the codec on every
// call; servers only need to import this package for the codec to register.
package rpc
