package util

// MaskSecret renders a secret safe for logs, keeping a short recognizable
// prefix.
func MaskSecret(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "-****"
}
