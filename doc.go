// Package authsession manages a client-held authentication session: it turns
// credentials or a second factor into access and refresh tokens, keeps the
// access token fresh with a single proactive timer, and tears everything down
// on logout or when the backend refuses a refresh.
//
// A [Manager] is assembled with [New] and [Builder.Build]; the remote service
// is injected as a [Backend] and persistence as a storage.Storage. Manager
// methods are safe to call from multiple goroutines.
//
// # Architecture boundaries
//
// authsession is the public surface. It exposes [Manager], [Builder], [Config],
// [State] and the backend payload types. Persistence adapters live in storage,
// the HTTP client for the backend contract in httpbackend, and time in clock.
//
// # What this package must NOT do
//
//   - Expose the refresh token, in State, logs or audit events.
//   - Verify token signatures or make trust decisions from token claims; the
//     jwt package is used only to read an expiry the backend did not send.
//   - Propagate backend failures to callers as errors; outcomes are reported
//     through LoginResult, booleans and State.Error.
package authsession
