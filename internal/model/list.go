package model

// The list helpers never mutate their input: cached slices may be held by
// readers, so every patch builds a new slice.

// IndexOf returns the position of the document with the given id, or -1.
func IndexOf(list []Doc, id ID) int {
	for i, d := range list {
		if got, ok := d.ID(); ok && got == id {
			return i
		}
	}

	return -1
}

// Find returns the document with the given id.
func Find(list []Doc, id ID) (Doc, bool) {
	if i := IndexOf(list, id); i >= 0 {
		return list[i], true
	}

	return nil, false
}

// Append returns list with d added at the end.
func Append(list []Doc, d Doc) []Doc {
	out := make([]Doc, len(list), len(list)+1)
	copy(out, list)

	return append(out, d)
}

// AppendIfAbsent appends d unless a document with the same id is present.
// The second result reports whether the list changed.
func AppendIfAbsent(list []Doc, d Doc) ([]Doc, bool) {
	id, ok := d.ID()
	if ok && IndexOf(list, id) >= 0 {
		return list, false
	}

	return Append(list, d), true
}

// Replace swaps the document with d's id for d, keeping its position.
func Replace(list []Doc, d Doc) ([]Doc, bool) {
	id, ok := d.ID()
	if !ok {
		return list, false
	}

	i := IndexOf(list, id)
	if i < 0 {
		return list, false
	}

	out := make([]Doc, len(list))
	copy(out, list)
	out[i] = d

	return out, true
}

// Upsert replaces the document with d's id, or appends d when absent.
func Upsert(list []Doc, d Doc) []Doc {
	if out, ok := Replace(list, d); ok {
		return out
	}

	return Append(list, d)
}

// MergeByID shallow-merges patch into the document with patch's id.
func MergeByID(list []Doc, patch Doc) ([]Doc, bool) {
	id, ok := patch.ID()
	if !ok {
		return list, false
	}

	i := IndexOf(list, id)
	if i < 0 {
		return list, false
	}

	out := make([]Doc, len(list))
	copy(out, list)
	out[i] = list[i].Merge(patch)

	return out, true
}

// Remove filters out the document with the given id.
func Remove(list []Doc, id ID) ([]Doc, bool) {
	i := IndexOf(list, id)
	if i < 0 {
		return list, false
	}

	out := make([]Doc, 0, len(list)-1)
	out = append(out, list[:i]...)

	return append(out, list[i+1:]...), true
}

// RemoveRef filters id out of a JSON array of references, comparing by
// normalized id so numeric and populated entries both match.
func RemoveRef(refs any, id ID) ([]any, bool) {
	items, ok := refs.([]any)
	if !ok {
		return nil, false
	}

	out := make([]any, 0, len(items))
	changed := false
	for _, item := range items {
		if got, ok := IDOf(item); ok && got == id {
			changed = true
			continue
		}
		out = append(out, item)
	}

	return out, changed
}

// NestedDocs returns the documents stored in an array field.
func (d Doc) NestedDocs(field string) []Doc {
	docs, _ := Docs(d[field])
	return docs
}
