package datalayer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/wearable-weather-sync/internal/datasync"
)

var validate = validator.New()

// Envelope is the wire form of one batch:
//
//	{"events":[{"path":"/weather","data":{"weatherID":800,"maxTemp":25,"minTemp":15}}]}
type Envelope struct {
	Events []datasync.Event `json:"events" validate:"required,dive"`
}

// Decode parses and validates an envelope. Numbers are kept as json.Number so
// integer fields survive without float rounding.
func Decode(data []byte) (datasync.Batch, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if err := Validate(env); err != nil {
		return nil, err
	}
	return datasync.Batch(env.Events), nil
}

// Validate checks the envelope shape. Payload fields are checked later, per
// event, by the sync handler.
func Validate(env Envelope) error {
	if err := validate.Struct(env); err != nil {
		return fmt.Errorf("invalid envelope: %w", err)
	}
	return nil
}

// Encode renders a batch as an envelope.
func Encode(b datasync.Batch) ([]byte, error) {
	data, err := json.Marshal(Envelope{Events: b})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}
