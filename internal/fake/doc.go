// Package fake provides in-memory resource launchers recording every call, for
// exercising session lifecycles without external binaries.
package fake
