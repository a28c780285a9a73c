// Package jwt reads and issues access tokens.
//
// [Inspect] decodes claims without verifying the signature. The session manager uses
// it only to learn a token's expiry when the backend omits expires_in; it never makes
// a trust decision from the result. [Signer] issues and verifies HS256 or Ed25519
// tokens for the local stub backend.
package jwt
