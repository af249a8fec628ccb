// Package netwatch tracks whether the remote API is reachable.
//
// A Watcher probes the API (plain HTTP or the gRPC health protocol) on every
// tick of an injected Scheduler and notifies subscribers on each
// offline/online transition. Tests drive it with ManualScheduler and Set
// instead of real timers and real connectivity.
package netwatch
