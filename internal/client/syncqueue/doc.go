// Package syncqueue is the durable, priority-ordered queue of mutations made
// while offline.
//
// Operations are persisted in the local store and replayed against the
// remote REST API by Drain, highest priority first and FIFO within a
// priority. A successful replay deletes the operation; a failed one keeps it
// with an incremented retry count until its budget is spent, after which it
// is moved to the dead-letter collection and an audit entry is written.
// Delivery is at-least-once: an operation is only removed after the remote
// side acknowledged it.
//
// Only one drain runs at a time. Run wires the queue to a reachability
// source and a scheduler so draining happens on reconnect and periodically
// while online.
package syncqueue
