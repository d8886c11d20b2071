package envelope

import (
	"testing"

	"github.com/goliatone/go-inbox/core"
)

func inboundRaw() map[string]any {
	return map[string]any{
		"type":      "message",
		"timestamp": float64(1700000000000),
		"app":       "demo-app",
		"payload": map[string]any{
			"id":     "ABEGkYaYVSEEAhAL",
			"type":   "text",
			"source": "5511999999999",
			"payload": map[string]any{
				"text": "hello",
			},
			"sender": map[string]any{
				"phone": "5511999999999",
				"name":  "Ana",
			},
		},
	}
}

func TestValidate_InboundMessage(t *testing.T) {
	env, err := Validate(inboundRaw())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if env.Type != core.EnvelopeTypeMessage || env.Payload.ID != "ABEGkYaYVSEEAhAL" {
		t.Fatalf("unexpected envelope %#v", env)
	}
	if env.Payload.Source != "5511999999999" || env.App != "demo-app" {
		t.Fatalf("unexpected source/app %#v", env)
	}
	if env.Payload.Payload["text"] != "hello" || env.Payload.Sender["name"] != "Ana" {
		t.Fatalf("expected nested payload and sender, got %#v", env.Payload)
	}
}

func TestValidate_CollectsTopLevelViolations(t *testing.T) {
	_, err := Validate(map[string]any{})
	fields := core.ValidationFields(err)
	if core.ErrorKindOf(err) != core.ErrorKindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"type", "payload"} {
		if len(fields[field]) == 0 {
			t.Fatalf("expected %s violation, got %#v", field, fields)
		}
	}
}

func TestValidate_RejectsUnknownEnvelopeType(t *testing.T) {
	raw := inboundRaw()
	raw["type"] = "billing-event"
	_, err := Validate(raw)
	fields := core.ValidationFields(err)
	if got := fields["type"]; len(got) != 1 || got[0] != "The selected type is invalid." {
		t.Fatalf("expected invalid type reason, got %#v", fields)
	}
	if _, ok := fields["payload.source"]; ok {
		t.Fatalf("conditional rules must be skipped for invalid type, got %#v", fields)
	}
}

func TestValidate_SourceRequiredForMessage(t *testing.T) {
	raw := inboundRaw()
	delete(raw["payload"].(map[string]any), "source")
	_, err := Validate(raw)
	if _, ok := core.ValidationFields(err)["payload.source"]; !ok {
		t.Fatalf("expected payload.source violation, got %v", err)
	}
}

func TestValidate_DestinationRequiredForEnqueued(t *testing.T) {
	raw := map[string]any{
		"type": "message-event",
		"payload": map[string]any{
			"id":      "wamid-1",
			"type":    "enqueued",
			"payload": map[string]any{"whatsappMessageId": "w1"},
		},
	}
	_, err := Validate(raw)
	fields := core.ValidationFields(err)
	if _, ok := fields["payload.destination"]; !ok {
		t.Fatalf("expected payload.destination violation, got %#v", fields)
	}
	if _, ok := fields["payload.source"]; ok {
		t.Fatalf("source must not be required for message events, got %#v", fields)
	}
}

func TestValidate_GsIDRequiredForStatusUpdates(t *testing.T) {
	for _, eventType := range []string{"read", "failed"} {
		t.Run(eventType, func(t *testing.T) {
			raw := map[string]any{
				"type": "message-event",
				"payload": map[string]any{
					"type":    eventType,
					"payload": map[string]any{"ts": float64(123456)},
				},
			}
			_, err := Validate(raw)
			fields := core.ValidationFields(err)
			if _, ok := fields["payload.gsId"]; !ok {
				t.Fatalf("expected payload.gsId violation, got %#v", fields)
			}
			if _, ok := fields["payload.id"]; ok {
				t.Fatalf("payload.id must be optional for status updates, got %#v", fields)
			}

			raw["payload"].(map[string]any)["gsId"] = "   "
			_, err = Validate(raw)
			if _, ok := core.ValidationFields(err)["payload.gsId"]; !ok {
				t.Fatalf("expected blank gsId to be rejected, got %v", err)
			}
		})
	}
}

func TestValidate_StatusUpdateWithGsID(t *testing.T) {
	env, err := Validate(map[string]any{
		"type": "message-event",
		"payload": map[string]any{
			"type":    "read",
			"gsId":    "GS-555",
			"payload": map[string]any{"ts": float64(123456)},
		},
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !env.IsStatusUpdate() || env.Payload.GsID != "GS-555" {
		t.Fatalf("unexpected status update envelope %#v", env)
	}
}

func TestValidate_TypeMismatches(t *testing.T) {
	raw := inboundRaw()
	payload := raw["payload"].(map[string]any)
	payload["payload"] = "not-an-object"
	payload["id"] = 42
	raw["app"] = 7
	_, err := Validate(raw)
	fields := core.ValidationFields(err)
	if fields["payload.payload"][0] != "The payload.payload field must be an object." {
		t.Fatalf("unexpected payload.payload reason %#v", fields)
	}
	if fields["payload.id"][0] != "The payload.id field must be a string." {
		t.Fatalf("unexpected payload.id reason %#v", fields)
	}
	if _, ok := fields["app"]; !ok {
		t.Fatalf("expected app violation, got %#v", fields)
	}
}

func TestDecode(t *testing.T) {
	v := New()
	if _, err := v.Decode([]byte(`not json`)); core.ValidationFields(err)["body"] == nil {
		t.Fatalf("expected body violation for malformed json, got %v", err)
	}
	if _, err := v.Decode(nil); core.ValidationFields(err)["body"] == nil {
		t.Fatalf("expected body violation for empty body, got %v", err)
	}
	env, err := v.Decode([]byte(`{"type":"message","payload":{"id":"m1","type":"text","source":"1","payload":{"text":"x"}}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Payload.Payload["text"] != "x" {
		t.Fatalf("unexpected decoded envelope %#v", env)
	}
}

func TestValidateNumber(t *testing.T) {
	if err := ValidateNumber("5511988887777"); err != nil {
		t.Fatalf("expected numeric number to pass, got %v", err)
	}
	for _, bad := range []string{"", "abc", " 123", "55-11"} {
		if err := ValidateNumber(bad); core.ValidationFields(err)["number"] == nil {
			t.Fatalf("expected %q to be rejected, got %v", bad, err)
		}
	}
}
