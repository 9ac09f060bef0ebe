package session

// State is a controller lifecycle state.
type State int

const (
	Idle State = iota
	BuildingGallery
	Capturing
	RoundClosing
	Resting
	// Halted follows a fatal error.
	Halted
	// Stopped follows cancellation or the configured number of rounds.
	Stopped
)

var stateNames = [...]string{
	Idle:            "idle",
	BuildingGallery: "building-gallery",
	Capturing:       "capturing",
	RoundClosing:    "round-closing",
	Resting:         "resting",
	Halted:          "halted",
	Stopped:         "stopped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the controller has finished.
func (s State) Terminal() bool {
	return s == Halted || s == Stopped
}
