// Package auth implements the authentication core: password registration
// and login, Google federation with account linking, WebAuthn passkey
// ceremonies and the capability based access gate.
//
// Persistence is reached only through UserStore and PasskeyStore; the
// Postgres implementation lives in the pgstore subpackage. Short-lived
// ceremony state (OAuth state, link tokens, passkey sessions and password
// reset tokens) is kept in an ephemeral.Store and consumed exactly once.
//
// Errors are package level sentinels matched with errors.Is. Input errors
// are *ValidationError values carrying a client-safe message.
package auth
