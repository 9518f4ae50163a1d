// Package model holds the opaque domain documents pushed by the panel server.
//
// Orders, tables, collections, gameplays and notifications are owned by the
// server; the sync layer only reads their identity and routing fields, so
// they are kept as generic JSON objects and unknown fields pass through.
package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
)

// Document field names read by the sync layer.
const (
	FieldID            = "_id"
	FieldLocation      = "location"
	FieldDate          = "date"
	FieldTable         = "table"
	FieldStatus        = "status"
	FieldCreatedBy     = "createdBy"
	FieldKitchen       = "kitchen"
	FieldCategory      = "category"
	FieldOrders        = "orders"
	FieldGameplays     = "gameplays"
	FieldFinishHour    = "finishHour"
	FieldType          = "type"
	FieldSelectedUsers = "selectedUsers"
	FieldSelectedRoles = "selectedRoles"
	FieldSeenBy        = "seenBy"
)

// ID is a normalized entity identifier. The server sends numeric ids for
// most entities and string ids for users; both compare as strings here.
type ID string

// IDOf normalizes a raw JSON value into an ID. Nested documents resolve to
// their own _id, so a populated reference and a bare one compare equal.
func IDOf(v any) (ID, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case ID:
		return t, t != ""
	case string:
		return ID(t), t != ""
	case float64:
		return ID(strconv.FormatFloat(t, 'f', -1, 64)), true
	case float32:
		return ID(strconv.FormatFloat(float64(t), 'f', -1, 32)), true
	case int:
		return ID(strconv.Itoa(t)), true
	case int32:
		return ID(strconv.FormatInt(int64(t), 10)), true
	case int64:
		return ID(strconv.FormatInt(t, 10)), true
	case uint64:
		return ID(strconv.FormatUint(t, 10)), true
	case json.Number:
		return ID(t.String()), t != ""
	case Doc:
		return t.ID()
	case map[string]any:
		return Doc(t).ID()
	default:
		return ID(fmt.Sprint(t)), true
	}
}

// IDs normalizes a JSON array of identifiers or documents.
func IDs(v any) []ID {
	items, ok := v.([]any)
	if !ok {
		if typed, ok := v.([]ID); ok {
			return typed
		}

		return nil
	}

	out := make([]ID, 0, len(items))
	for _, item := range items {
		if id, ok := IDOf(item); ok {
			out = append(out, id)
		}
	}

	return out
}

// Doc is a JSON object as received from the server.
type Doc map[string]any

// ID returns the document's _id.
func (d Doc) ID() (ID, bool) {
	if d == nil {
		return "", false
	}

	return IDOf(d[FieldID])
}

// Ref returns the identifier stored in field, whether the field holds a bare
// id or a populated document.
func (d Doc) Ref(field string) (ID, bool) {
	return IDOf(d[field])
}

// String returns a string field, or "" when absent or not a string.
func (d Doc) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Object returns a nested document field.
func (d Doc) Object(field string) (Doc, bool) {
	switch t := d[field].(type) {
	case Doc:
		return t, true
	case map[string]any:
		return Doc(t), true
	default:
		return nil, false
	}
}

// Clone returns a shallow copy.
func (d Doc) Clone() Doc {
	if d == nil {
		return nil
	}

	return maps.Clone(d)
}

// Merge returns a shallow copy of d with every field of patch applied.
func (d Doc) Merge(patch Doc) Doc {
	out := make(Doc, len(d)+len(patch))
	maps.Copy(out, d)
	maps.Copy(out, patch)

	return out
}

// With returns a shallow copy of d with field set to value.
func (d Doc) With(field string, value any) Doc {
	out := d.Clone()
	if out == nil {
		out = Doc{}
	}
	out[field] = value

	return out
}

// Docs converts a decoded JSON array into documents, skipping non-objects.
func Docs(v any) ([]Doc, bool) {
	switch t := v.(type) {
	case []Doc:
		return t, true
	case []any:
		out := make([]Doc, 0, len(t))
		for _, item := range t {
			switch d := item.(type) {
			case Doc:
				out = append(out, d)
			case map[string]any:
				out = append(out, Doc(d))
			}
		}

		return out, true
	default:
		return nil, false
	}
}

// Normalize converts decoded JSON (maps and slices of maps) into Doc and
// []Doc so cached values have one shape regardless of their source.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Doc(t)
	case []any:
		if docs, ok := Docs(t); ok && len(docs) == len(t) {
			return docs
		}

		return t
	default:
		return v
	}
}
