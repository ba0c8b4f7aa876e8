// Package transport dispatches requests to the marketplace backend and
// normalizes every outcome into one envelope shape. It owns the
// refresh-and-retry handling for expired access tokens.
package transport

import (
	"encoding/json"
	"fmt"
)

// ErrorKind classifies a failed envelope. Callers rarely branch on it (the
// Success flag and Message carry the user-facing contract), but logs and
// metrics do.
type ErrorKind string

const (
	// KindLocal is a validation failure that never reached the network.
	KindLocal ErrorKind = "local"
	// KindTransport is a network-level failure with no server response.
	KindTransport ErrorKind = "transport"
	// KindServer is a non-2xx response carrying a message body.
	KindServer ErrorKind = "server"
	// KindAuthExpired is a 401 that survived the one refresh-and-retry.
	KindAuthExpired ErrorKind = "auth_expired"
)

// FileField is a binary payload part sent as multipart form data.
type FileField struct {
	Field   string
	Name    string
	Content []byte
}

// Request describes one call to the backend. Immutable per call: the
// dispatcher never mutates it, including across the 401 replay.
type Request struct {
	Method       string
	Path         string
	Payload      any
	RequiresAuth bool
	Files        []FileField
}

// Response is the uniform envelope every caller consumes. Transport failures,
// local validation failures, and non-2xx statuses all fold into it; callers
// never see a raw transport error.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Status  int             `json:"-"`
	Kind    ErrorKind       `json:"-"`
}

// DecodeData unmarshals the envelope's data into v.
func (r Response) DecodeData(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("envelope has no data")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode envelope data: %w", err)
	}
	return nil
}

// Err converts a failed envelope to an error, or nil for a success.
func (r Response) Err() error {
	if r.Success {
		return nil
	}
	if r.Message == "" {
		return fmt.Errorf("request failed with status %d", r.Status)
	}
	return fmt.Errorf("%s", r.Message)
}

func failure(kind ErrorKind, status int, message string) Response {
	return Response{Success: false, Message: message, Status: status, Kind: kind}
}
