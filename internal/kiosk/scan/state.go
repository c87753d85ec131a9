package scan

// State is the kiosk's scan session state.
type State int

const (
	Idle State = iota
	Processing
	Granted
	Denied
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}
