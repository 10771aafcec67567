package templates

import (
	"bytes"
	"encoding/json"
)

// The editor UI historically persisted the structured template columns in
// several shapes: well-formed JSON, JSON-encoded-as-a-JSON-string (double
// encoded), the literal "[object Object]", or NULL. This file is the single
// seam where those shapes are normalised to the canonical in-memory form.
// Nothing outside this file inspects the raw column encoding.

type rawState int

const (
	rawEmpty rawState = iota
	rawOK
	rawDoubleEncoded
	rawBad
)

// normalizeRaw reduces a stored column value to clean JSON of the wanted
// container kind ('[' or '{'), reporting how much work that took.
func normalizeRaw(raw []byte, want byte) ([]byte, rawState) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, rawEmpty
	}
	if trimmed[0] == want && json.Valid(trimmed) {
		return trimmed, rawOK
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err == nil {
			innerBytes := bytes.TrimSpace([]byte(inner))
			if len(innerBytes) > 0 && innerBytes[0] == want && json.Valid(innerBytes) {
				return innerBytes, rawDoubleEncoded
			}
		}
	}
	return nil, rawBad
}

// DecodeElements decodes a stored elements column into the canonical ordered
// element list. Individually malformed entries are dropped rather than
// failing the whole list. The second return reports whether the stored value
// needed repair work (degraded).
func DecodeElements(raw []byte) ([]Element, bool) {
	clean, state := normalizeRaw(raw, '[')
	if clean == nil {
		return []Element{}, state == rawBad
	}
	degraded := state == rawDoubleEncoded

	var entries []json.RawMessage
	if err := json.Unmarshal(clean, &entries); err != nil {
		return []Element{}, true
	}
	elements := make([]Element, 0, len(entries))
	for _, entry := range entries {
		var el Element
		if err := json.Unmarshal(entry, &el); err != nil {
			degraded = true
			continue
		}
		elements = append(elements, el)
	}
	return elements, degraded
}

// DecodeSettings decodes a stored settings column, falling back to the
// default page geometry when the value is unrecoverable.
func DecodeSettings(raw []byte) (Settings, bool) {
	clean, state := normalizeRaw(raw, '{')
	if clean == nil {
		return DefaultSettings(), state == rawBad
	}
	settings := DefaultSettings()
	if err := json.Unmarshal(clean, &settings); err != nil {
		return DefaultSettings(), true
	}
	if settings.PageSize == "" {
		settings.PageSize = "A4"
	}
	return settings, state == rawDoubleEncoded
}

// DecodeBranding decodes a stored branding column.
func DecodeBranding(raw []byte) (Branding, bool) {
	clean, state := normalizeRaw(raw, '{')
	if clean == nil {
		return Branding{}, state == rawBad
	}
	var branding Branding
	if err := json.Unmarshal(clean, &branding); err != nil {
		return Branding{}, true
	}
	return branding, state == rawDoubleEncoded
}

// DecodeLayout decodes a stored layout column. Layout is advisory editor
// state; it stays an opaque map.
func DecodeLayout(raw []byte) (map[string]any, bool) {
	clean, state := normalizeRaw(raw, '{')
	if clean == nil {
		return map[string]any{}, state == rawBad
	}
	var layout map[string]any
	if err := json.Unmarshal(clean, &layout); err != nil {
		return map[string]any{}, true
	}
	return layout, state == rawDoubleEncoded
}

// repairField computes the repaired encoding for one stored column. It
// returns the replacement value and whether the stored value needs rewriting.
// Already-valid JSON is left untouched, which makes repair idempotent.
func repairField(raw []byte, want byte) ([]byte, bool) {
	clean, state := normalizeRaw(raw, want)
	switch state {
	case rawOK:
		return nil, false
	case rawDoubleEncoded:
		return clean, true
	default:
		return emptyContainer(want), true
	}
}

func emptyContainer(want byte) []byte {
	if want == '[' {
		return []byte("[]")
	}
	return []byte("{}")
}
