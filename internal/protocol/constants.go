package protocol

import "time"

const (
	// PingInterval is the cadence at which servers send Ping.
	PingInterval = time.Second

	// KeepaliveInterval is how long a client waits for the next Ping
	// before it considers the connection dead.
	KeepaliveInterval = 3 * PingInterval

	// TransportTimeout bounds TCP connect plus the TLS handshake.
	TransportTimeout = 5 * time.Second

	// bufferSize is the read and write buffer size of a Conn.
	bufferSize = 1024
)
