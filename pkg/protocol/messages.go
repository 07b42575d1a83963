package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Type tags a message on the wire.
type Type string

const (
	TypeTranslateRequest  Type = "TRANSLATE_REQUEST"
	TypeTranslateResponse Type = "TRANSLATE_RESPONSE"
	TypeInitEngine        Type = "INIT_ENGINE"
	TypeInitResult        Type = "INIT_RESULT"
	TypeInitProgress      Type = "INIT_PROGRESS"
	TypeGetStatus         Type = "GET_STATUS"
	TypeStatusResponse    Type = "STATUS_RESPONSE"
	TypeClearCache        Type = "CLEAR_CACHE"
	TypeAck               Type = "ACK"
	TypeError             Type = "ERROR"
)

// Message is any value that travels across the transport.
type Message interface {
	Type() Type
}

// Request is the closed set of messages an origin sends to the host.
type Request interface {
	Message
	isRequest()
}

// Reply is the closed set of messages the host sends back, including
// broadcast progress events.
type Reply interface {
	Message
	isReply()
}

// ============================================================
// Origin -> host
// ============================================================

// TranslateRequest asks for a translation of one subtitle line.
type TranslateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"sourceLang"`
	TargetLang string `json:"targetLang"`
	RequestID  string `json:"requestId"`
}

// InitEngine asks the host to load a model.
type InitEngine struct {
	ModelID string `json:"modelId"`
}

// GetStatus asks for engine and hardware status.
type GetStatus struct{}

// ClearCache drops every cached translation.
type ClearCache struct{}

func (TranslateRequest) Type() Type { return TypeTranslateRequest }
func (InitEngine) Type() Type       { return TypeInitEngine }
func (GetStatus) Type() Type        { return TypeGetStatus }
func (ClearCache) Type() Type       { return TypeClearCache }

func (TranslateRequest) isRequest() {}
func (InitEngine) isRequest()       {}
func (GetStatus) isRequest()        {}
func (ClearCache) isRequest()       {}

// ============================================================
// Host -> origin
// ============================================================

// TranslateResponse carries a result and the tier that produced it.
type TranslateResponse struct {
	RequestID string            `json:"requestId"`
	Result    TranslationResult `json:"result"`
	Source    Source            `json:"source"`
}

// InitResult answers InitEngine.
type InitResult struct {
	Success       bool   `json:"success"`
	AlreadyLoaded bool   `json:"alreadyLoaded,omitempty"`
	Initializing  bool   `json:"initializing,omitempty"`
	Error         string `json:"error,omitempty"`
}

// InitProgress is broadcast to every listener while a model loads.
type InitProgress struct {
	Progress int    `json:"progress"` // 0-100
	Status   string `json:"status"`
}

// StatusResponse answers GetStatus. Hardware is nil until profiled.
type StatusResponse struct {
	EngineReady bool             `json:"engineReady"`
	ModelID     string           `json:"modelId"`
	Hardware    *HardwareProfile `json:"hardware"`
}

// Ack answers requests that carry no data back.
type Ack struct{}

// Error reports a failure, optionally tied to a request.
type Error struct {
	RequestID string `json:"requestId,omitempty"`
	Error     string `json:"error"`
}

func (TranslateResponse) Type() Type { return TypeTranslateResponse }
func (InitResult) Type() Type        { return TypeInitResult }
func (InitProgress) Type() Type      { return TypeInitProgress }
func (StatusResponse) Type() Type    { return TypeStatusResponse }
func (Ack) Type() Type               { return TypeAck }
func (Error) Type() Type             { return TypeError }

func (TranslateResponse) isReply() {}
func (InitResult) isReply()        {}
func (InitProgress) isReply()      {}
func (StatusResponse) isReply()    {}
func (Ack) isReply()               {}
func (Error) isReply()             {}

// ============================================================
// Envelope codec
// ============================================================

type envelope struct {
	Type Type `json:"type"`
}

// Encode writes m as a flat JSON object with a "type" discriminator.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("protocol encode: nil message")
	}
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol encode %s: %w", m.Type(), err)
	}
	tag, err := json.Marshal(m.Type())
	if err != nil {
		return nil, fmt.Errorf("protocol encode %s: %w", m.Type(), err)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeRequest parses an origin -> host message.
func DecodeRequest(data []byte) (Request, error) {
	t, err := peekType(data)
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeTranslateRequest:
		return decodeAs[TranslateRequest](data)
	case TypeInitEngine:
		return decodeAs[InitEngine](data)
	case TypeGetStatus:
		return GetStatus{}, nil
	case TypeClearCache:
		return ClearCache{}, nil
	default:
		return nil, fmt.Errorf("protocol decode: unknown request type %q", t)
	}
}

// DecodeReply parses a host -> origin message.
func DecodeReply(data []byte) (Reply, error) {
	t, err := peekType(data)
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeTranslateResponse:
		return decodeAs[TranslateResponse](data)
	case TypeInitResult:
		return decodeAs[InitResult](data)
	case TypeInitProgress:
		return decodeAs[InitProgress](data)
	case TypeStatusResponse:
		return decodeAs[StatusResponse](data)
	case TypeAck:
		return Ack{}, nil
	case TypeError:
		return decodeAs[Error](data)
	default:
		return nil, fmt.Errorf("protocol decode: unknown reply type %q", t)
	}
}

func peekType(data []byte) (Type, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("protocol decode: %w", err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("protocol decode: missing type")
	}
	return env.Type, nil
}

func decodeAs[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("protocol decode: %w", err)
	}
	return v, nil
}
