// Package password hashes and verifies passwords with argon2id and enforces
// the account password and email policy.
//
// Hashes use the PHC string format
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
//
// so the parameters travel with the hash and can be raised later; NeedsRehash
// reports hashes created with older parameters.
//
// # Usage
//
//	h, err := password.New()
//	if err != nil { ... }
//	defer h.Close()
//
//	encoded, err := h.Hash(ctx, "S3cure!pass")
//	ok, err := h.Verify(ctx, "S3cure!pass", encoded)
package password
