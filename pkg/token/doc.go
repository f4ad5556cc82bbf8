// Package token generates and checks operator tokens for the modekeeper
// admin API.
//
// Operators get a random token once; nodes only ever store its
// HMAC-SHA256 hash (OPERATOR_TOKEN_HASH) keyed by a shared secret
// (HMAC_SECRET):
//
//	tok, _ := token.Generate()
//	hash := token.Hash(tok, secret)
//
// Requests carry the plaintext token in the X-Modekeeper-Token header and
// are checked with a Verifier, which compares in constant time.
package token
