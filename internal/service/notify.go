package service

import "encoding/json"

// broadcast pushes an event to the websocket hub without blocking.
// A nil hub (tests, worker-only deployments) is a no-op.
func broadcast(hub Broadcaster, event string, data map[string]interface{}) {
	if hub == nil {
		return
	}
	msg, err := json.Marshal(map[string]interface{}{"type": event, "data": data})
	if err != nil {
		return
	}
	select {
	case hub.GetBroadcast() <- msg:
	default:
	}
}
