package archive

// NotFoundError is returned when a run id doesn't exist in the archive.
type NotFoundError struct {
	RunID string
}

func (e NotFoundError) Error() string {
	if e.RunID == "" {
		return "run not found"
	}

	return "run not found: " + e.RunID
}
