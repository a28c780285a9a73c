// Package rate provides a Redis-backed fixed-window attempt limiter.
//
// # Window semantics
//
// INCR + conditional EXPIRE on first hit. Keys are Prefix + ":" + subject, so
// one Redis can hold several independent limiters.
//
// # What this package must NOT do
//
//   - Decide what a subject is. Callers pass emails, challenge IDs or addresses.
//   - Be imported by the authsession root package.
package rate
