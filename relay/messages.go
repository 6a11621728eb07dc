package relay

// frame is the wire envelope for every WebSocket text message exchanged on
// /signal and /relay (spec.md §6): a flat JSON object keyed by "action"
// with a handful of optional fields used by different actions. Decoding
// into one permissive struct keeps the per-action handlers free of ad-hoc
// map[string]interface{} digging, matching the flat-message style the
// teacher's own wire structures use (engine/torrent.go's JSON-tagged
// status structs).
type frame struct {
	Action string `json:"action"`

	// signaling (client side)
	Req string `json:"req,omitempty"`
	Res string `json:"res,omitempty"`
	ID  string `json:"id,omitempty"`

	// hand-off / routing
	Relay interface{} `json:"relay,omitempty"` // string digest (relay mesh) or web-url-or-null (hand-off)

	// relay-peer identity (session handshake)
	Address string `json:"address,omitempty"`
	Web     string `json:"web,omitempty"`
	Host    string `json:"host,omitempty"`
	Port    int    `json:"port,omitempty"`
	Domain  string `json:"domain,omitempty"`
	Reply   bool   `json:"reply,omitempty"`

	// protocol violation
	Error string `json:"error,omitempty"`
}

// relayDigest extracts the string digest out of the polymorphic Relay
// field used by the "session"/"add"/"sub" actions (always a string there,
// unlike the hand-off "relay" action where it may be null).
func (f frame) relayDigest() string {
	s, _ := f.Relay.(string)
	return s
}
