// Package adaptive provides the authenticated encryption used for mutation
// log payloads.
//
// The cipher is chosen from the hardware the server runs on:
//
//   - AES-256-GCM: Preferred when hardware AES support is available
//   - ChaCha20-Poly1305: Fallback for other architectures
//
// Keys come from configuration as hex or base64 text. A value that does not
// decode to exactly 32 bytes is treated as a passphrase and stretched with
// HKDF-SHA256, so the same configured secret always yields the same key.
//
// Usage:
//
//	key, err := adaptive.ParseKey(cfg.Security.EncryptionKey)
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plaintext, err := c.Decrypt(sealed, aad)
package adaptive
