// Package types defines shared Go types used by both the agent and server.
// SensorReading is the canonical in-memory representation of one equipment
// reading; ReadingInput is its wire form, where every field is optional so
// the receiving side can report what is missing.
package types
