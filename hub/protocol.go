// Package hub implements the helper broker: a Unix domain socket server
// that registers helper connections, launches and stops helper
// containers, and routes point-to-point and broadcast messages between
// helpers.
package hub

import (
	"encoding/json"
	"fmt"
)

// request is the closed set of wire requests. Each variant corresponds
// to one protocol action; decodeRequest produces exactly one of them so
// dispatch can type-switch exhaustively.
type request interface {
	action() string
}

// registerRequest binds the sending connection to a helper number.
type registerRequest struct {
	HelperNum int
}

// spawnRequest asks the hub to launch a helper container. HelpersDir,
// when set, overrides the hub's configured helpers directory so a
// nested parent can point at its own tree.
type spawnRequest struct {
	HelperNum  int
	Model      string
	HelpersDir string
}

// stopRequest asks the hub to stop and remove a container by name.
type stopRequest struct {
	ContainerName string
}

// sendRequest routes a payload to one helper.
type sendRequest struct {
	To      int
	Payload json.RawMessage
}

// broadcastRequest routes a payload to every other registered helper.
type broadcastRequest struct {
	Payload json.RawMessage
}

func (registerRequest) action() string  { return "register" }
func (spawnRequest) action() string     { return "spawn" }
func (stopRequest) action() string      { return "stop" }
func (sendRequest) action() string      { return "send" }
func (broadcastRequest) action() string { return "broadcast" }

// rawRequest is the wire shape of every request; only the fields
// relevant to the given action are read.
type rawRequest struct {
	Action        string          `json:"action"`
	HelperNum     *int            `json:"helper_num"`
	HelpersDir    string          `json:"helpers_dir"`
	Model         string          `json:"model"`
	ContainerName string          `json:"container_name"`
	To            *int            `json:"to"`
	Payload       json.RawMessage `json:"payload"`
}

// decodeRequest parses one JSON line into a request variant. Payloads
// stay opaque; the hub never interprets them.
func decodeRequest(line []byte) (request, error) {
	var raw rawRequest
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON")
	}

	switch raw.Action {
	case "register":
		num := -1
		if raw.HelperNum != nil {
			num = *raw.HelperNum
		}
		return registerRequest{HelperNum: num}, nil
	case "spawn":
		num := -1
		if raw.HelperNum != nil {
			num = *raw.HelperNum
		}
		return spawnRequest{HelperNum: num, Model: raw.Model, HelpersDir: raw.HelpersDir}, nil
	case "stop":
		return stopRequest{ContainerName: raw.ContainerName}, nil
	case "send":
		if raw.To == nil {
			return nil, fmt.Errorf("missing 'to'")
		}
		return sendRequest{To: *raw.To, Payload: raw.Payload}, nil
	case "broadcast":
		return broadcastRequest{Payload: raw.Payload}, nil
	default:
		return nil, fmt.Errorf("unknown action: %s", raw.Action)
	}
}

// Response is the reply to one request.
type Response struct {
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	ContainerName string `json:"container_name,omitempty"`
}

func okResponse() Response {
	return Response{Status: "ok"}
}

func errorResponse(format string, args ...any) Response {
	return Response{Status: "error", Message: fmt.Sprintf(format, args...)}
}

// MessageEvent is an unsolicited push delivered to a recipient
// connection when another helper sends or broadcasts to it.
type MessageEvent struct {
	Event   string          `json:"event"`
	From    int             `json:"from"`
	Payload json.RawMessage `json:"payload"`
}
