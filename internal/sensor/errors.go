package sensor

import "errors"

// Error taxonomy. Control-plane errors (DeviceNotFound, ConnectFailed,
// ProtocolError on command responses) propagate to the caller;
// data-plane errors (malformed frames) are logged and the offending
// frame is dropped, never returned as an error.
var (
	ErrDeviceNotFound       = errors.New("sensor: device not found")
	ErrConnectFailed        = errors.New("sensor: connect failed")
	ErrProtocol             = errors.New("sensor: protocol error")
	ErrUnexpectedDisconnect = errors.New("sensor: unexpected disconnect")
)
