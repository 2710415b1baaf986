package protocol

import "encoding/json"

type Action string

const (
	ActionGet         Action = "GET"
	ActionPut         Action = "PUT"
	ActionRemove      Action = "REMOVE"
	ActionSubscribe   Action = "SUBSCRIBE"
	ActionUnsubscribe Action = "UNSUBSCRIBE"
)

func (a Action) Valid() bool {
	switch a {
	case ActionGet, ActionPut, ActionRemove, ActionSubscribe, ActionUnsubscribe:
		return true
	default:
		return false
	}
}

// Request is the inbound frame. Data is the raw key for every action except
// PUT, where it holds a JSON-encoded PutPayload.
type Request struct {
	Action Action  `json:"action"`
	Data   *string `json:"data"`
}

type PutPayload struct {
	Key   *string         `json:"key"`
	Value json.RawMessage `json:"value"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func Success(message string) Response {
	return Response{Status: StatusSuccess, Message: message}
}

func Failure(message string) Response {
	return Response{Status: StatusError, Message: message}
}
