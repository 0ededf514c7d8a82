package utils

// Truncate caps s at maxLen bytes and appends an ellipsis when it was cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
