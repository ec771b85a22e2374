package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// FilterAction is applied to a matching metadata field.
type FilterAction string

const (
	FilterActionRemove FilterAction = "remove"
	FilterActionHash   FilterAction = "hash"
	FilterActionMask   FilterAction = "mask"
)

var defaultSensitiveFields = map[string]FilterAction{
	"password":     FilterActionRemove,
	"new_password": FilterActionRemove,
	"token":        FilterActionRemove,
	"link_token":   FilterActionRemove,
	"access_token": FilterActionRemove,
	"id_token":     FilterActionRemove,
	"code":         FilterActionRemove,
	"state":        FilterActionRemove,
	"email":        FilterActionMask,
}

// MetadataFilter strips or obscures sensitive metadata before storage.
type MetadataFilter struct {
	rules map[string]FilterAction
}

type FilterOption func(*MetadataFilter)

// WithField sets the action for a field, overriding the defaults.
func WithField(field string, action FilterAction) FilterOption {
	return func(f *MetadataFilter) { f.rules[strings.ToLower(field)] = action }
}

// NewMetadataFilter starts from the default sensitive field set.
func NewMetadataFilter(opts ...FilterOption) *MetadataFilter {
	f := &MetadataFilter{rules: make(map[string]FilterAction, len(defaultSensitiveFields))}
	for k, v := range defaultSensitiveFields {
		f.rules[k] = v
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Filter returns a filtered copy of metadata.
func (f *MetadataFilter) Filter(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		action, ok := f.rules[strings.ToLower(key)]
		if !ok {
			out[key] = value
			continue
		}
		switch action {
		case FilterActionRemove:
		case FilterActionHash:
			sum := sha256.Sum256(fmt.Appendf(nil, "%v", value))
			out[key] = hex.EncodeToString(sum[:])
		case FilterActionMask:
			out[key] = mask(fmt.Sprintf("%v", value))
		default:
			out[key] = value
		}
	}
	return out
}

// mask keeps the first character of the local part and the whole domain of
// an email, and the first and last two characters of anything else.
func mask(s string) string {
	if at := strings.LastIndexByte(s, '@'); at > 0 {
		return s[:1] + strings.Repeat("*", at-1) + s[at:]
	}
	n := len(s)
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	return s[:2] + strings.Repeat("*", n-4) + s[n-2:]
}
