// Package content maps provider specific message payloads to the canonical
// body content stored on a message record.
package content

import (
	"fmt"
	"strings"
	"sync"
)

const (
	TypeText     = "text"
	TypeImage    = "image"
	TypeAudio    = "audio"
	TypeVideo    = "video"
	TypeDocument = "document"
	TypeLocation = "location"
)

// NormalizeFunc converts a provider payload into canonical content. Missing
// fields must map to nil, never to an error.
type NormalizeFunc func(payload map[string]any) any

// Normalizer dispatches on content type. Unknown types pass through
// unchanged.
type Normalizer struct {
	mu       sync.RWMutex
	handlers map[string]NormalizeFunc
}

// NewNormalizer returns a normalizer with the built-in content types.
func NewNormalizer() *Normalizer {
	n := &Normalizer{handlers: map[string]NormalizeFunc{}}
	n.handlers[TypeText] = normalizeText
	n.handlers[TypeImage] = normalizeImage
	n.handlers[TypeAudio] = normalizeMedia
	n.handlers[TypeVideo] = normalizeMedia
	n.handlers[TypeDocument] = normalizeMedia
	n.handlers[TypeLocation] = normalizeLocation
	return n
}

// Register installs or replaces the normalizer for contentType.
func (n *Normalizer) Register(contentType string, fn NormalizeFunc) error {
	if n == nil {
		return fmt.Errorf("content: normalizer is nil")
	}
	key := normalizeKey(contentType)
	if key == "" {
		return fmt.Errorf("content: content type is required")
	}
	if fn == nil {
		return fmt.Errorf("content: normalize func is required")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handlers == nil {
		n.handlers = map[string]NormalizeFunc{}
	}
	n.handlers[key] = fn
	return nil
}

func (n *Normalizer) Normalize(contentType string, payload map[string]any) any {
	if n == nil {
		return passthrough(payload)
	}
	n.mu.RLock()
	fn, ok := n.handlers[normalizeKey(contentType)]
	n.mu.RUnlock()
	if !ok {
		return passthrough(payload)
	}
	return fn(payload)
}

var defaultNormalizer = NewNormalizer()

// Normalize uses the built-in content types.
func Normalize(contentType string, payload map[string]any) any {
	return defaultNormalizer.Normalize(contentType, payload)
}

func normalizeText(payload map[string]any) any {
	return payload["text"]
}

func normalizeImage(payload map[string]any) any {
	return map[string]any{
		"url":      payload["url"],
		"caption":  payload["caption"],
		"mimeType": firstPresent(payload, "mimeType", "contentType"),
	}
}

func normalizeMedia(payload map[string]any) any {
	return map[string]any{
		"url":      payload["url"],
		"mimeType": firstPresent(payload, "mimeType", "contentType"),
		"filename": firstPresent(payload, "filename", "name"),
	}
}

func normalizeLocation(payload map[string]any) any {
	return map[string]any{
		"latitude":  payload["latitude"],
		"longitude": payload["longitude"],
		"name":      payload["name"],
		"address":   payload["address"],
	}
}

func passthrough(payload map[string]any) any {
	if payload == nil {
		return nil
	}
	return payload
}

func firstPresent(payload map[string]any, keys ...string) any {
	for _, key := range keys {
		if value, ok := payload[key]; ok && value != nil {
			return value
		}
	}
	return nil
}

func normalizeKey(contentType string) string {
	return strings.ToLower(strings.TrimSpace(contentType))
}
