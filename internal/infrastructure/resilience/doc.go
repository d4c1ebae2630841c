/*
Package resilience provides a circuit breaker for calls to the automation bridge.

# Overview

When the bridge is down every send and state query would otherwise wait out
its own timeout. The breaker counts failures and, once tripped, rejects calls
with ErrCircuitOpen until Timeout elapses, then lets MaxRequests probes
through in half-open state.

# Usage

	breaker := resilience.New("bridge", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errRejected)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			metrics.SetBreakerState(int(to))
		},
	})

	state, err := resilience.Call(ctx, breaker, client.fetchState)

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                          Open
*/
package resilience
