// Package types defines the service-provider surface shared between tool
// providers and whatever dispatches tool calls to them.
package types
