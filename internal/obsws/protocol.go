package obsws

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

// obs-websocket protocol v5 opcodes
const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opEvent           = 5
	opRequest         = 6
	opRequestResponse = 7
)

const rpcVersion = 1

// Event subscription bits. InputActiveStateChanged is a high-volume
// subscription and must be requested explicitly.
const (
	subInputs                  = 1 << 3
	subInputActiveStateChanged = 1 << 17
)

// message is the envelope every obs-websocket frame uses
type message struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type helloData struct {
	RPCVersion     int `json:"rpcVersion"`
	Authentication *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication,omitempty"`
}

type identifyData struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type eventData struct {
	EventType string          `json:"eventType"`
	EventData json.RawMessage `json:"eventData"`
}

type requestData struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type responseData struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment"`
	} `json:"requestStatus"`
	ResponseData json.RawMessage `json:"responseData"`
}

func envelope(op int, d any) (message, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return message{}, err
	}
	return message{Op: op, D: raw}, nil
}

// authResponse computes the Identify authentication string:
// base64(sha256(base64(sha256(password + salt)) + challenge))
func authResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	final := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(final[:])
}
