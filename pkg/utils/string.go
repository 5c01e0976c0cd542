package utils

// Truncate shortens s to maxLen bytes and appends an ellipsis. Session
// IDs and previews in command output go through this; it is byte-based,
// not rune-safe.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
