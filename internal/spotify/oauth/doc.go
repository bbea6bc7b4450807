// Package oauth implements the Spotify authorization-code and refresh flow.
//
// The flow is client-side: the process builds an authorization URL with a
// per-session state token, hosts a one-shot callback listener on localhost
// (HTTP or HTTPS, matching the configured redirect URI), exchanges the
// returned code at the token endpoint, and persists the resulting token
// triple through the config store with the cache layer as fallback.
//
// # Authorization state
//
// The Manager decides whether a caller is authorized by consulting, in
// priority order:
//
//  1. The persisted config document. When readable it is the source of
//     truth; tokens found there are adopted into memory and mirrored into
//     the cache.
//  2. The token pair itself: a token further than five minutes from expiry
//     is trusted as-is, a nearer one is proactively refreshed and the
//     refreshed triple persisted.
//  3. When the document is unreadable, the in-memory/cached refresh token.
//
// Every failure degrades to "not authorized" plus a fresh authorization
// URL; no path leaves the process unable to restart the full flow.
//
// # Callback listener
//
// The callback server accepts exactly one authorization callback. The code
// exchange runs inside the request handler, before the HTTP response is
// written, so the browser page always reflects the real outcome. Requests
// to other paths return 404 without disturbing the pending flow, and the
// listener is torn down on every terminal branch.
//
// SECURITY: token values are never logged, only lengths, expiry timestamps
// and booleans. The state token is a replay check for a single local
// session, not a cryptographic secret.
package oauth
