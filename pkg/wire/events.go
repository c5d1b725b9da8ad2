package wire

import "encoding/json"

// PlayerJoined is the s→c playerJoined event (spec.md §6): sent once, right
// after Server.Connect, so a dialing client learns the player id the
// server authority allocated it. JoinTime is a Unix timestamp;
// DisconnectTime is always 0 on the way out, as spec.md documents.
type PlayerJoined struct {
	ID             uint32 `json:"id"`
	PlayerID       uint32 `json:"playerId"`
	JoinTime       int64  `json:"joinTime"`
	DisconnectTime int64  `json:"disconnectTime"`
}

// EncodePlayerJoined marshals a PlayerJoined event for a
// MessageTypePlayerJoined envelope.
func EncodePlayerJoined(p PlayerJoined) ([]byte, error) {
	return json.Marshal(p)
}

// DecodePlayerJoined reverses EncodePlayerJoined.
func DecodePlayerJoined(data []byte) (PlayerJoined, error) {
	var p PlayerJoined
	err := json.Unmarshal(data, &p)
	return p, err
}

// RoomUpdate is the s→c roomUpdate event (spec.md §6), sent to a player
// whose room assignment changed.
type RoomUpdate struct {
	PlayerID uint32 `json:"playerId"`
	From     string `json:"from"`
	To       string `json:"to"`
}

func EncodeRoomUpdate(r RoomUpdate) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRoomUpdate(data []byte) (RoomUpdate, error) {
	var r RoomUpdate
	err := json.Unmarshal(data, &r)
	return r, err
}

// TraceEntry is one entry of a c→s trace batch (spec.md §6): {time, step,
// data}. Data is left as raw JSON since trace payloads are game-specific.
type TraceEntry struct {
	Time int64           `json:"time"`
	Step uint64          `json:"step"`
	Data json.RawMessage `json:"data"`
}

func EncodeTraceBatch(entries []TraceEntry) ([]byte, error) {
	return json.Marshal(entries)
}

func DecodeTraceBatch(data []byte) ([]TraceEntry, error) {
	var entries []TraceEntry
	err := json.Unmarshal(data, &entries)
	return entries, err
}
