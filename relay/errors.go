package relay

import "errors"

// Sentinel errors surfaced from the relay's connection and mesh state
// machine. Matches the teacher's convention of plain errors.New/fmt.Errorf
// sentinels (server/server_api.go's errTaskAdded) rather than a
// stack-trace-carrying error type.
var (
	errUnsupportedRoute  = errors.New("route is not supported")
	errInvalidHTTPRoute  = errors.New("invalid method or path")
	errMissingParam      = errors.New("missing required query parameter")
	errUnsubscribedHash  = errors.New("info-hash is not subscribed")
	errDuplicateClientID = errors.New("client id already connected")
	errDuplicatePeerID   = errors.New("peer id already connected")
	errSessionSpoofed    = errors.New("session id does not match claimed address")
	errSessionMismatch   = errors.New("session relay digest does not match expected digest")
	errRelayCapacity     = errors.New("relay peer capacity reached for this info-hash")
)
