package hub

import "encoding/json"

type wireFrame struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// EncodeFrame wraps a bus payload (already JSON) in the websocket wire shape.
func EncodeFrame(topic string, payload []byte) ([]byte, error) {
	return json.Marshal(wireFrame{Topic: topic, Data: payload})
}
