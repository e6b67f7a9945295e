package channel

import (
	"encoding/json"
	"fmt"
)

// Command is an outbound control directive for the creation surface.
// Delivery is fire-and-forget: no acknowledgement is guaranteed.
type Command struct {
	Target    string         `json:"target"`
	Type      string         `json:"type"`
	EventName string         `json:"eventName,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

const commandTarget = "avatar-creator"

// SubscribeCommand tells the surface to start emitting lifecycle events.
func SubscribeCommand() Command {
	return Command{
		Target:    commandTarget,
		Type:      "subscribe",
		EventName: "v1.**",
	}
}

// ConfigureCommand pushes configuration directives to the surface.
func ConfigureCommand(data map[string]any) Command {
	return Command{
		Target: commandTarget,
		Type:   "configure",
		Data:   data,
	}
}

// EncodeCommand serializes a command for the outbound channel.
func EncodeCommand(cmd Command) ([]byte, error) {
	b, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	return b, nil
}
