// Package instance guarantees that one trgui process owns the desktop session
// and lets later launches hand their arguments to it.
//
// Arbitration is an OS advisory lock on <dir>/<name>.lock: whichever process
// takes it first is the primary, everyone else is a secondary. The primary
// then serves a small gRPC service on the unix socket <dir>/<name>.sock that
// secondaries call to forward their argument batch. Messages are protobuf
// well-known types so no generated code is needed.
//
// All process-boundary concerns live here; the rest of the host only sees
// TryBind, Listen, Send, Start and Stop.
package instance
