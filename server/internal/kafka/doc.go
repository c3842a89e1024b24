// Package kafka streams published payloads to Kafka as JSON. Producer
// implements risk.Publisher so HIGH and CRITICAL assessments can be fanned
// out to downstream consumers alongside the dashboard.
package kafka
