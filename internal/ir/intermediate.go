package ir

// Intermediate is a prepared record: an ordered multimap from composite tag
// keys to the values found under them. Repeated occurrences of a key
// accumulate in input order; Keys reports first-occurrence order.
//
// Keys are the tag followed by both indicators for data fields, with blank
// indicators written as "_" ("100__", "24510"), or the bare tag for control
// fields ("001"). Control field values are IRString, data field values are
// IRObject keyed by subfield code.
type Intermediate struct {
	MasterFormat string

	keys   []string
	values map[string][]IRValue
}

// NewIntermediate returns an empty record for the given master format.
func NewIntermediate(masterFormat string) *Intermediate {
	return &Intermediate{
		MasterFormat: masterFormat,
		values:       make(map[string][]IRValue),
	}
}

// Add appends one occurrence under key.
func (r *Intermediate) Add(key string, v IRValue) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = append(r.values[key], v)
}

// Get returns every occurrence under key in input order.
func (r *Intermediate) Get(key string) []IRValue {
	return r.values[key]
}

// Has reports whether key occurred at least once.
func (r *Intermediate) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Keys returns the distinct keys in first-occurrence order.
func (r *Intermediate) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of distinct keys.
func (r *Intermediate) Len() int {
	return len(r.keys)
}

// Rename moves every occurrence of from under to. When to already exists
// the moved values are appended after its own and to keeps its position;
// otherwise to takes the position of from.
func (r *Intermediate) Rename(from, to string) {
	if from == to {
		return
	}
	vals, ok := r.values[from]
	if !ok {
		return
	}
	if _, exists := r.values[to]; exists {
		r.Delete(from)
		r.values[to] = append(r.values[to], vals...)
		return
	}
	for i, k := range r.keys {
		if k == from {
			r.keys[i] = to
			break
		}
	}
	delete(r.values, from)
	r.values[to] = vals
}

// Delete removes key and all of its occurrences.
func (r *Intermediate) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}
