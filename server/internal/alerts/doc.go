// Package alerts delivers HIGH and CRITICAL risk assessments to webhook
// targets: Slack, Microsoft Teams, or any HTTP endpoint accepting JSON.
// Delivery runs in the background; failures are logged and never reach the
// reading's submitter.
package alerts
