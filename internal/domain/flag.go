package domain

import (
	"encoding/json"
	"time"
)

// Flag is a feature flag record as issued by the remote flag service.
// Records are replaced wholesale on update; Key is the identity.
type Flag struct {
	Key         string     `json:"slug"`
	Enabled     bool       `json:"enabled"`
	Payload     any        `json:"payload,omitempty"`
	ExpiredAt   *time.Time `json:"expiredAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Description string     `json:"description"`
}

// Validate checks the record can be stored.
func (f Flag) Validate() error {
	if f.Key == "" {
		return NewValidationError("flag key cannot be empty")
	}
	return nil
}

// Expired reports whether the flag carries an expiry in the past.
func (f Flag) Expired(now time.Time) bool {
	return f.ExpiredAt != nil && !f.ExpiredAt.After(now)
}

// DecodePayload converts the payload into T through its JSON form.
// Payloads decoded from the wire are generic maps, so this is how
// consumers get typed values back.
func DecodePayload[T any](payload any) (T, error) {
	var out T
	if payload == nil {
		return out, nil
	}
	if typed, ok := payload.(T); ok {
		return typed, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return out, NewValidationErrorWithCause("payload is not serializable", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, NewValidationErrorWithCause("payload does not match requested type", err)
	}
	return out, nil
}

// FromJSON decodes a generic JSON value (as produced by a JS runtime or
// an untyped decoder) into flag records.
func FromJSON(v any) ([]Flag, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var flags []Flag
	if err := json.Unmarshal(raw, &flags); err != nil {
		return nil, err
	}
	return flags, nil
}
