package heartbeat

// Payload is the heartbeat:beat event body. The responder's handler
// records the sender (payload.NodeID) as Alive in its own history — see
// module.go's handler doc comment for why.
type Payload struct {
	NodeID string `json:"node_id"`
	BeatAt int64  `json:"beat_at"`
}
