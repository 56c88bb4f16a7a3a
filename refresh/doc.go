// Package refresh coordinates token refresh across concurrent callers.
//
// # Single flight
//
// Every caller that observes a rejected access token calls
// [Coordinator.Refresh]. The first one becomes the leader and performs the
// network call; callers arriving while it is in flight wait for the same
// [Outcome]. The leader's call runs detached from the leader's own context,
// so cancelling any caller, the leader included, only abandons that caller's
// wait.
//
// # Outcomes
//
//   - [Success]: the new pair was committed to the store before release.
//   - [Denied]: the server rejected the refresh token; the store was cleared.
//   - [TransportFailure]: anything else; the store is untouched.
//
// A circuit breaker and a rate limiter cap how often leaders reach the
// network. Both surface as [TransportFailure] ([ErrCircuitOpen],
// [ErrThrottled]).
//
// # What this package must NOT do
//
//   - Import authpipe or internal/flows.
//   - Retry the refresh call.
//   - Fire session-ended signals; that belongs to the request pipeline.
package refresh
