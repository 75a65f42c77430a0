// Package background runs launch-and-forget commands outside the interactive
// shell session and keeps a queryable record of each one.
//
// Records are keyed by OS process id and inserted before Launch returns, so
// a query immediately after launch always finds the process even if it has
// already exited. Output is appended chunk by chunk as it arrives; exit
// status is filled in by the waiter goroutine. Records are never evicted
// automatically.
package background
