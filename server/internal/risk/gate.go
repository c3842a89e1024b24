package risk

// ShouldRecord is the debounce rule deciding whether a newly classified
// level becomes an alert event, given the level of the most recent event for
// the same equipment (LevelNone when there is none).
//
//	current != LOW                        -> record, even if equal to previous
//	current == LOW, previous > LOW        -> record the recovery
//	current == LOW, previous LOW or NONE  -> suppress
func ShouldRecord(current, previous Level) bool {
	if current != LevelLow {
		return true
	}
	return previous > LevelLow
}
