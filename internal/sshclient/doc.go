// Package sshclient turns a [config.Endpoint] into an authenticated
// *ssh.Client.
//
// Authentication methods are assembled in a fixed order: public key (inline
// PEM or key file, decrypted with the passphrase when one is given), SSH agent,
// password, and finally keyboard-interactive answered with the password. The
// server picks whichever it accepts first.
//
// Host keys are checked against a known_hosts file when one is configured.
// Without it every host key is accepted and a warning is logged once.
package sshclient
