// Package httpbackend implements [authsession.Backend] over HTTP/JSON.
//
// Routes are relative to the configured base URL:
//
//	POST /auth/login        {"email","password"}
//	POST /auth/2fa/verify   {"code","challenge_id"}
//	POST /auth/2fa/backup   {"code","challenge_id"}
//	POST /auth/refresh      {"refresh_token"}
//	GET  /auth/verify       Authorization: Bearer <access token>
//	POST /auth/logout       {"refresh_token","revoke_all"}
//
// A 4xx answer carrying a JSON body is an explicit rejection and is returned
// as a response with Success (or Valid) false. Any other non-2xx status, an
// oversized body or undecodable JSON is returned as an error.
//
// # What this package must NOT do
//
//   - Retry requests. Retry policy belongs to the Manager and its timer.
//   - Log tokens, codes or passwords.
package httpbackend
