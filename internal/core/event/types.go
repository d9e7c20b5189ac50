package event

// Session lifecycle events emitted by the input phase.

type PlayerConnected struct {
	SessionID uint64
	Username  string
}

type PlayerDisconnected struct {
	SessionID uint64
}
