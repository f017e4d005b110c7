// Package nxapi implements the JSON-RPC management client for NX-API
// capable switches.
//
// The management plane accepts batches of CLI commands as JSON-RPC 2.0
// request objects POSTed to https://<host>/ins with HTTP Basic Auth. Each
// request carries a method discriminator ("cli" for read-only show
// commands, "cli_conf" for configuration), the command string, a protocol
// version marker, and a numeric id used to correlate the batched responses.
//
// # Error classification
//
// Every call classifies failures into three families with different
// handling:
//
//   - Transport failures (connection refused, DNS, TLS handshake, timeout)
//     are retried with bounded exponential backoff on read paths. On the
//     configure path only failures that provably happen before the device
//     could execute anything are retried; an ambiguous timeout is surfaced
//     so the caller can roll back.
//   - Protocol failures (response is not the expected JSON-RPC envelope)
//     are never retried; a malformed response does not self-heal.
//   - Device rejections (the switch refused a specific command) are never
//     retried; the offending command and the device's error payload are
//     attached to the result and execution stops there.
//
// The device reports rejections through the JSON-RPC error member, and
// that member is authoritative: an HTTP 200 with an error object inside is
// still a rejection.
//
// A Client is constructed per device binding and owns its HTTP session;
// nothing in this package is process-global, which keeps per-device
// locking in the deploy coordinator straightforward.
package nxapi
