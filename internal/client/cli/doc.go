// Package cli provides the interactive offlinekit command-line client.
//
// It wires configuration, the local store, the security layer, the sync
// queue and the data orchestrator, then runs a REPL. A background watcher
// tracks reachability of the remote API: the prompt shows online/offline
// mode, the queue drains on reconnect, and the advisory offline_since and
// last_flush_attempt flags are kept up to date.
//
// Commands cover the data layer's public surface:
//   - login / logout (the access token is pasted and stored in token_file)
//   - sync, show, users, update-profile, update-user, export
//   - queue, dead, drain, retry, requeue
//   - metrics, purge, purge-logs
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
