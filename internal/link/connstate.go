package link

// ConnState is the connection lifecycle state owned by the supervisor.
type ConnState int

const (
	// StateOffline is the state before Start and the terminal state after Close.
	StateOffline ConnState = iota
	StateConnecting
	StateOnline
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOnline:
		return "ONLINE"
	case StateReconnecting:
		return "RECONNECTING"
	default:
		return "OFFLINE"
	}
}
