/*
Package resilience provides a circuit breaker for operations that fail
persistently, built on sony/gobreaker.

The shell supervisor guards PTY allocation with it: after a few consecutive
allocation failures the breaker opens and sessions are spawned directly in
fallback mode until the cooldown elapses and a trial allocation succeeds.

	breaker := resilience.New[*os.File](resilience.Settings{
		Name:             "pty-spawn",
		FailureThreshold: 3,
		Cooldown:         time.Minute,
	})
	ptmx, err := breaker.Execute(func() (*os.File, error) { return pty.StartWithSize(cmd, ws) })
	if resilience.IsRejected(err) {
		// go straight to the fallback backend
	}
*/
package resilience
