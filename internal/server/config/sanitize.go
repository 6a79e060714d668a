package config

// Sanitize returns a copy of cfg that is safe to log. The encryption key
// keeps its first and last two characters only.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	out := *cfg
	out.Server.Admin.AllowList = append([]string(nil), cfg.Server.Admin.AllowList...)
	if key := out.Security.EncryptionKey; key != "" {
		out.Security.EncryptionKey = maskSecret(key)
	}
	return &out
}

// maskSecret hides all of s when it is too short to show any of it.
func maskSecret(s string) string {
	const hidden = "****"
	if len(s) <= 8 {
		return hidden
	}
	return s[:2] + hidden + s[len(s)-2:]
}
