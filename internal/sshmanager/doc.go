// Package sshmanager is the session registry: it maps caller-chosen
// connection identifiers to live SSH connections.
//
// # Lifecycle
//
//	disconnected → connecting → connected → (Close) → disconnected
//	                          ↘ failed
//
// [SSHManager.Connect] reserves the identifier in the connecting state before
// dialing, so two concurrent connects for the same identifier cannot both
// succeed; the loser gets [ErrAlreadyExists]. A failed dial never inserts the
// identifier. [SSHManager.Close] closes the client and forgets the identifier
// entirely, including its state history, so a closed identifier is
// indistinguishable from one that was never connected.
//
// There is no keepalive, health checking or reconnection. A connection that
// dies stays registered until it is closed; the next operation on it fails
// and the caller decides whether to reconnect.
//
// # State Tracking
//
// [ConnectionStateTracker] keeps the current state of each identifier and its
// last 50 transitions. Callbacks registered with
// [SSHManager.OnConnectionStateChange] fire outside the lock.
//
// # Events
//
// Each identifier keeps a ring buffer of its last 100 [ConnectionEvent]s,
// which the status endpoints expose.
//
// # Usage
//
//	mgr := sshmanager.NewSSHManager(0, dial) // 0 = unlimited connections
//	defer mgr.CloseAll()
//
//	sess, err := mgr.Connect(ctx, "build-box", endpoint)
//	if errors.Is(err, sshmanager.ErrAlreadyExists) { ... }
//
//	sess, err = mgr.Get("build-box")
//	if errors.Is(err, sshmanager.ErrNotFound) { ... }
//
// All log output uses the [ssh] prefix.
package sshmanager
