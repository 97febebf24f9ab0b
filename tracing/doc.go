// Package tracing records spans around session lifecycle operations. Spans
// are no-ops until Init installed a provider.
package tracing
