// Package envelope validates raw provider webhook callbacks and turns them
// into typed envelopes.
package envelope

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/goliatone/go-inbox/core"
)

// Validator applies the envelope rules. It holds no state and is safe for
// concurrent use.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

var defaultValidator = New()

// Validate checks raw with the default validator.
func Validate(raw map[string]any) (core.Envelope, error) {
	return defaultValidator.Validate(raw)
}

// Decode parses a JSON body and validates it.
func (v *Validator) Decode(body []byte) (core.Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return core.Envelope{}, core.NewFieldValidationError("envelope: invalid payload", map[string][]string{
			"body": {"The body field is required."},
		})
	}
	var raw map[string]any
	if err := json.Unmarshal(trimmed, &raw); err != nil || raw == nil {
		return core.Envelope{}, core.NewFieldValidationError("envelope: invalid payload", map[string][]string{
			"body": {"The body must be a valid JSON object."},
		})
	}
	return v.Validate(raw)
}

// Validate collects every rule violation of raw. Conditional rules that
// depend on the envelope type are skipped when the type itself is invalid.
func (v *Validator) Validate(raw map[string]any) (core.Envelope, error) {
	errs := violations{}
	if raw == nil {
		raw = map[string]any{}
	}

	envType, typeOK := errs.requiredString(raw, "type", "type")
	if typeOK && envType != core.EnvelopeTypeMessage && envType != core.EnvelopeTypeMessageEvent {
		errs.add("type", "The selected type is invalid.")
		typeOK = false
	}

	env := core.Envelope{
		Type:      envType,
		Timestamp: raw["timestamp"],
		Version:   raw["version"],
		App:       errs.optionalString(raw, "app", "app"),
		Raw:       raw,
	}

	payload, payloadOK := errs.requiredObject(raw, "payload", "payload")
	if payloadOK {
		eventType, _ := errs.requiredString(payload, "type", "payload.type")
		statusUpdate := typeOK && core.IsStatusUpdateEvent(envType, eventType)

		env.Payload.Type = eventType
		if statusUpdate {
			env.Payload.ID = errs.optionalString(payload, "id", "payload.id")
			env.Payload.GsID, _ = errs.requiredString(payload, "gsId", "payload.gsId")
		} else {
			env.Payload.ID, _ = errs.requiredString(payload, "id", "payload.id")
			env.Payload.GsID = errs.optionalString(payload, "gsId", "payload.gsId")
		}

		if typeOK && envType == core.EnvelopeTypeMessage {
			env.Payload.Source, _ = errs.requiredString(payload, "source", "payload.source")
		} else {
			env.Payload.Source = errs.optionalString(payload, "source", "payload.source")
		}

		if typeOK && envType == core.EnvelopeTypeMessageEvent && !statusUpdate {
			env.Payload.Destination, _ = errs.requiredString(payload, "destination", "payload.destination")
		} else {
			env.Payload.Destination = errs.optionalString(payload, "destination", "payload.destination")
		}

		env.Payload.Payload, _ = errs.requiredObject(payload, "payload", "payload.payload")
		env.Payload.Sender = errs.optionalObject(payload, "sender", "payload.sender")
	}

	if err := errs.err(); err != nil {
		return core.Envelope{}, err
	}
	return env, nil
}

// ValidateNumber checks the own number attached to a webhook route.
func ValidateNumber(number string) error {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return core.NewFieldValidationError("envelope: invalid number", map[string][]string{
			"number": {"The number field is required."},
		})
	}
	if trimmed != number {
		return core.NewFieldValidationError("envelope: invalid number", map[string][]string{
			"number": {"The number field must be a number."},
		})
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
		return core.NewFieldValidationError("envelope: invalid number", map[string][]string{
			"number": {"The number field must be a number."},
		})
	}
	return nil
}

type violations map[string][]string

func (v violations) add(field string, reason string) {
	v[field] = append(v[field], reason)
}

func (v violations) err() error {
	if len(v) == 0 {
		return nil
	}
	return core.NewFieldValidationError("envelope: validation failed", v)
}

func (v violations) requiredString(source map[string]any, key string, field string) (string, bool) {
	value, exists := source[key]
	if !exists || value == nil {
		v.add(field, "The "+field+" field is required.")
		return "", false
	}
	text, ok := value.(string)
	if !ok {
		v.add(field, "The "+field+" field must be a string.")
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		v.add(field, "The "+field+" field is required.")
		return "", false
	}
	return text, true
}

func (v violations) optionalString(source map[string]any, key string, field string) string {
	value, exists := source[key]
	if !exists || value == nil {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		v.add(field, "The "+field+" field must be a string.")
		return ""
	}
	return text
}

func (v violations) requiredObject(source map[string]any, key string, field string) (map[string]any, bool) {
	value, exists := source[key]
	if !exists || value == nil {
		v.add(field, "The "+field+" field is required.")
		return nil, false
	}
	object, ok := value.(map[string]any)
	if !ok {
		v.add(field, "The "+field+" field must be an object.")
		return nil, false
	}
	return object, true
}

func (v violations) optionalObject(source map[string]any, key string, field string) map[string]any {
	value, exists := source[key]
	if !exists || value == nil {
		return nil
	}
	object, ok := value.(map[string]any)
	if !ok {
		v.add(field, "The "+field+" field must be an object.")
		return nil
	}
	return object
}
