// Package fixture loads the synthetic event POSTed to the runtime emulator.
// The payload is an SNS notification wrapping S3 object records, the same
// shape the production trigger delivers; beyond that shape the content is
// opaque to the pipeline.
package fixture

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNotSNSEvent indicates the fixture is valid JSON but not an SNS-wrapped
// records event.
var ErrNotSNSEvent = errors.New("fixture: not an SNS records event")

type event struct {
	Records []record `json:"Records"`
}

type record struct {
	Sns *struct {
		Message string `json:"Message"`
	} `json:"Sns"`
}

// Load reads and validates the fixture payload at path. The returned bytes
// are POSTed verbatim; validation never rewrites the payload.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Validate checks that payload is an SNS notification carrying at least one
// inner S3 record set.
func Validate(payload []byte) error {
	var ev event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("fixture: invalid JSON: %w", err)
	}
	if len(ev.Records) == 0 {
		return ErrNotSNSEvent
	}
	rec := ev.Records[0]
	if rec.Sns == nil || rec.Sns.Message == "" {
		return ErrNotSNSEvent
	}
	var inner struct {
		Records []json.RawMessage `json:"Records"`
	}
	if err := json.Unmarshal([]byte(rec.Sns.Message), &inner); err != nil {
		return fmt.Errorf("fixture: SNS message is not JSON: %w", err)
	}
	if len(inner.Records) == 0 {
		return ErrNotSNSEvent
	}
	return nil
}
