package ws

const (
	// client - server
	MsgPing = "ping"

	// server - client
	MsgReady   = "ready"
	MsgProfile = "profile"
	MsgPong    = "pong"
	MsgError   = "error"
)
