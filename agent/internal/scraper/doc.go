// Package scraper polls equipment exporters that publish sensor gauges in the
// Prometheus text exposition format and turns them into SensorReadings.
//
// An exporter exposes, per piece of equipment:
//
//	equipment_temperature_celsius{equipment_id="EQ-1"} 72.4
//	equipment_vibration_mm_per_second{equipment_id="EQ-1"} 3.1
//	equipment_load_percent{equipment_id="EQ-1"} 55
//
// Gauge names and the id label are configurable per source. Authentication
// (mTLS, API key, bearer, basic) is applied by authRoundTripper in client.go.
package scraper
