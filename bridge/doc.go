// Package bridge carries log batches across the boundary between the isolated
// context and the privileged forwarding process.
//
// Pipe is an in-process channel; Client and Server carry the same messages as
// newline-delimited JSON over a TCP or Unix socket. All variants are one-way and
// fire-and-forget: a sender never learns whether delivery succeeded.
package bridge
