// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package envelope defines the uniform result returned by every operation.
package envelope

import (
	"encoding/json"
	"time"

	apperrors "polenta/gateway/internal/errors"

	"github.com/google/uuid"
)

// Status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result types carried in the "type" field of a success envelope.
const (
	TypeTableList           = "table_list"
	TypeAccessibleTableList = "accessible_table_list"
	TypeTableDescription    = "table_description"
	TypeSampleData          = "sample_data"
	TypeTableSearch         = "table_search"
	TypeQueryResult         = "query_result"
	TypeEntityList          = "entity_list"
	TypeSuggestions         = "suggestions"
	TypeSchemas             = "schemas"
	TypeTables              = "tables"
	TypeColumns             = "columns"
)

// Envelope is either a success (Type and Payload set) or an error
// (ErrorKind set). Payload keys are flattened into the JSON object next to
// the fixed fields.
type Envelope struct {
	Status      string
	Type        string
	Message     string
	ErrorKind   apperrors.Kind
	Payload     map[string]any
	ExecutionID string
	Timestamp   int64
}

// Success builds a stamped success envelope.
func Success(typ, message string, payload map[string]any) Envelope {
	if payload == nil {
		payload = map[string]any{}
	}
	return stamp(Envelope{
		Status:  StatusSuccess,
		Type:    typ,
		Message: message,
		Payload: payload,
	})
}

// Failure builds a stamped error envelope from err. Only the display-safe
// message of err is exposed; invalid-parameter details go into "fields".
func Failure(err error) Envelope {
	e := Envelope{
		Status:    StatusError,
		Message:   apperrors.MessageOf(err),
		ErrorKind: apperrors.KindOf(err),
		Payload:   map[string]any{},
	}
	if fields := apperrors.FieldsOf(err); len(fields) > 0 {
		e.Payload["fields"] = fields
	}
	return stamp(e)
}

func stamp(e Envelope) Envelope {
	e.ExecutionID = uuid.NewString()
	e.Timestamp = time.Now().UnixMilli()
	return e
}

// OK reports whether e is a success envelope.
func (e Envelope) OK() bool { return e.Status == StatusSuccess }

// Map renders e as a flat JSON-style object.
func (e Envelope) Map() map[string]any {
	m := make(map[string]any, len(e.Payload)+6)
	for k, v := range e.Payload {
		m[k] = v
	}
	m["status"] = e.Status
	m["message"] = e.Message
	m["user_message"] = e.Message
	m["execution_id"] = e.ExecutionID
	m["timestamp"] = e.Timestamp
	if e.Type != "" {
		m["type"] = e.Type
	}
	if e.ErrorKind != "" {
		m["error_kind"] = string(e.ErrorKind)
	}
	return m
}

// MarshalJSON implements json.Marshaler.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Map())
}
