// Package rpc defines the wire messages exchanged between the storage stubs
// and the backend servers, and between tribctl and the front-end. Requests
// and responses are plain JSON bodies; an empty string in Value denotes an
// absent key.
package rpc

// Key names a single key.
type Key struct {
	Key string `json:"key"`
}

// Value carries a scalar value. "" means the key is unset.
type Value struct {
	Value string `json:"value"`
}

// KeyValue carries a key together with a value.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Pattern selects keys by prefix and suffix; empty strings match all.
type Pattern struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
}

// StringList carries an ordered list of strings.
type StringList struct {
	List []string `json:"list"`
}

// Bool carries a boolean outcome.
type Bool struct {
	Value bool `json:"value"`
}

// Clock carries a logical timestamp.
type Clock struct {
	Timestamp uint64 `json:"timestamp"`
}

// ListRemoveResponse reports how many list elements were removed.
type ListRemoveResponse struct {
	Removed uint32 `json:"removed"`
}
