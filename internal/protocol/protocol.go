// Package protocol defines the JSON protocol spoken by trogdord.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Request represents a request sent to trogdord.
type Request struct {
	Method string         `json:"method"`
	Scope  string         `json:"scope"`
	Action string         `json:"action,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
}

// Methods
const (
	MethodGet    = "get"
	MethodPost   = "post"
	MethodSet    = "set"
	MethodDelete = "delete"
)

// Scopes
const (
	ScopeGlobal   = "global"
	ScopeGame     = "game"
	ScopeEntity   = "entity"
	ScopeTangible = "tangible"
	ScopePlace    = "place"
	ScopeRoom     = "room"
	ScopeThing    = "thing"
	ScopeObject   = "object"
	ScopeBeing    = "being"
	ScopeCreature = "creature"
	ScopePlayer   = "player"
	ScopeResource = "resource"
)

// Actions
const (
	ActionStatistics  = "statistics"
	ActionConfig      = "config"
	ActionList        = "list"
	ActionMeta        = "meta"
	ActionDefinitions = "definitions"
	ActionStart       = "start"
	ActionStop        = "stop"
	ActionTime        = "time"
	ActionIsRunning   = "is_running"
	ActionDump        = "dump"
	ActionDumpList    = "dumplist"
	ActionRestore     = "restore"
	ActionOutput      = "output"
	ActionInput       = "input"
)

// Status codes carried in every response. They mirror HTTP semantics.
const (
	StatusNone          = 0 // no request completed yet
	StatusOK            = 200
	StatusBadRequest    = 400
	StatusNotFound      = 404
	StatusConflict      = 409
	StatusInternalError = 500
	StatusNotSupported  = 501
	StatusUnavailable   = 503
)

// NewRequest creates a new request. An empty action or nil args are omitted
// from the encoded frame.
func NewRequest(method, scope, action string, args map[string]any) *Request {
	return &Request{
		Method: method,
		Scope:  scope,
		Action: action,
		Args:   args,
	}
}

// Validate checks that the fields trogdord requires are present.
func (r *Request) Validate() error {
	if r.Method == "" {
		return errors.New("request missing method")
	}
	if r.Scope == "" {
		return errors.New("request missing scope")
	}
	return nil
}

// Response represents a response from trogdord.
//
// Besides status and message every operation returns its own fields
// (id, name, entities, games, meta, ...). The full body is kept in Raw so
// callers can decode whatever shape they expect.
type Response struct {
	Status  int             `json:"status"`
	Message string          `json:"message,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the complete body alongside the common fields.
func (r *Response) UnmarshalJSON(data []byte) error {
	var common struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &common); err != nil {
		return err
	}
	r.Status = common.Status
	r.Message = common.Message
	r.Raw = append(r.Raw[:0], data...)
	return nil
}

// MarshalJSON returns the original body when there is one.
func (r Response) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	type plain struct {
		Status  int    `json:"status"`
		Message string `json:"message,omitempty"`
	}
	return json.Marshal(plain{Status: r.Status, Message: r.Message})
}

// Decode unmarshals the whole response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Raw) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Raw, v)
}

// Field unmarshals a single top-level field into v.
// It reports false if the field is absent.
func (r *Response) Field(key string, v any) (bool, error) {
	var fields map[string]json.RawMessage
	if err := r.Decode(&fields); err != nil {
		return false, err
	}
	raw, ok := fields[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode field %q: %w", key, err)
	}
	return true, nil
}

// IsSuccess reports whether status is a 2xx code.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// StatusError is a well-formed response whose status is not a success code.
// The client never returns it; the consumer layer maps statuses onto it.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("trogdord: status %d", e.Status)
	}
	return fmt.Sprintf("trogdord: %s (status %d)", e.Message, e.Status)
}

// CheckStatus returns a *StatusError if resp does not carry a 2xx status.
func CheckStatus(resp *Response) error {
	if IsSuccess(resp.Status) {
		return nil
	}
	return &StatusError{Status: resp.Status, Message: resp.Message}
}

// IsStatus reports whether err is a *StatusError with the given status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == status
	}
	return false
}

// IsNotFound reports whether err is a 404 status error.
func IsNotFound(err error) bool {
	return IsStatus(err, StatusNotFound)
}
