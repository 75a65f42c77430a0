// Package format renders command and background-process results into the
// tagged text envelopes handed back to callers, bounding each output field.
package format
