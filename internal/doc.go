// Package internal holds helpers private to the authsession module.
//
// The package itself mints the opaque refresh tokens and backup codes used by
// the stub backend.
//
// # Sub-packages
//
//   - config: Viper-based settings for the command and the stub backend
//   - rate: Redis-backed fixed-window attempt limiter used by the stub backend
//
// # What this package must NOT do
//
//   - Export types that appear in the public authsession API.
//   - Be imported by the authsession root package.
package internal
