package testutil

// RaceEnabled returns whether the race detector is enabled.
// This is a constant at compile time. It should be used to
// conditionally skip tests that deliberately race.
func RaceEnabled() bool {
	return raceEnabled
}
