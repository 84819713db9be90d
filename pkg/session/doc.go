/*
Package session implements per-session ownership for the inquiry pipeline.

A session's State is a single mutable resource. The Manager hands out exclusive claims
(TryAcquire) to the worker running the session, rejecting concurrent runs instead of queueing
them. With a ports.DistributedLocker the claim also spans replicas, and the lease is renewed
for as long as the claim is held.
*/
package session
