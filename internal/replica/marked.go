// Package replica implements the fault-tolerant KV view over a (primary,
// backup) backend pair: scalar fan-out, the PREFIX/SUFFIX list pair, and the
// deterministic ordering that lets concurrent appends on either replica
// converge to one per-list total order.
package replica

import (
	"encoding/json"
	"sort"
)

// Replica roles recorded in a MarkedValue.
const (
	TypePrimary    = "Primary"
	TypeBackup     = "Backup"
	TypeNotDefined = "NotDefined"
)

// List keys are stored in typed pairs: the PREFIX list holds the replayed
// history received through migration, the SUFFIX list holds appends observed
// locally.
const (
	PrefixTag = "PREFIX_"
	SuffixTag = "SUFFIX_"
)

// MarkedValue is the atom appended to a suffix list: the user-visible value
// annotated with enough origin information to merge deterministically.
type MarkedValue struct {
	// BackendType records which replica role observed the append.
	BackendType string `json:"backend_type"`
	// BackendID is the stable index of the observing backend.
	BackendID int `json:"backend_id"`
	// Clock is the observing backend's clock at append time.
	Clock uint64 `json:"clock"`
	// Index is the position the append landed at on the primary's suffix
	// list; 0 when appended on the primary, filled in for the replica copy.
	Index uint64 `json:"index"`
	// Value is the user-visible payload.
	Value string `json:"value"`
}

// less orders MarkedValues by (clock, backend id, index).
func (m MarkedValue) less(o MarkedValue) bool {
	if m.Clock != o.Clock {
		return m.Clock < o.Clock
	}
	if m.BackendID != o.BackendID {
		return m.BackendID < o.BackendID
	}
	return m.Index < o.Index
}

// sameEvent reports whether two MarkedValues describe the same append.
// The replica role is ignored: the same event may be seen as Primary on one
// side and Backup on the other.
func (m MarkedValue) sameEvent(o MarkedValue) bool {
	return m.BackendID == o.BackendID &&
		m.Clock == o.Clock &&
		m.Index == o.Index &&
		m.Value == o.Value
}

func encodeMarked(m MarkedValue) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMarked(s string) (MarkedValue, error) {
	var m MarkedValue
	err := json.Unmarshal([]byte(s), &m)
	return m, err
}

// markedItem keeps a decoded MarkedValue together with its exact wire form,
// so removals can target one specific stored element.
type markedItem struct {
	mv  MarkedValue
	raw string
}

// mergeLists builds the canonical list from a (PREFIX, SUFFIX) pair: the
// prefix segment cut before the first element equal to the suffix's head,
// followed by the whole suffix. The cut is what stops the bridging element
// from being counted twice after a migration replay.
func mergeLists(prefixRaw, suffixRaw []string) ([]markedItem, error) {
	if len(prefixRaw) == 0 && len(suffixRaw) == 0 {
		return nil, nil
	}

	head := MarkedValue{BackendType: TypeNotDefined}
	if len(suffixRaw) > 0 {
		var err error
		if head, err = decodeMarked(suffixRaw[0]); err != nil {
			return nil, err
		}
	}

	var merged []markedItem
	for _, raw := range prefixRaw {
		mv, err := decodeMarked(raw)
		if err != nil {
			return nil, err
		}
		if len(suffixRaw) > 0 && mv.sameEvent(head) {
			break
		}
		merged = append(merged, markedItem{mv: mv, raw: raw})
	}
	for _, raw := range suffixRaw {
		mv, err := decodeMarked(raw)
		if err != nil {
			return nil, err
		}
		merged = append(merged, markedItem{mv: mv, raw: raw})
	}
	return merged, nil
}

// consistentOrder reduces a canonical list to the user-visible sequence of
// values. Primary-typed entries carry the authoritative order and pass
// through as-is; runs of backup-side observations are buffered, sorted by
// (clock, backend id, index) and deduplicated before being emitted, so every
// client derives the same order once both replicas hold the same events.
func consistentOrder(items []markedItem) []string {
	var out []string
	var scratch []MarkedValue

	flush := func() {
		if len(scratch) == 0 {
			return
		}
		sort.SliceStable(scratch, func(i, j int) bool {
			return scratch[i].less(scratch[j])
		})
		for i, mv := range scratch {
			if i > 0 && mv.sameEvent(scratch[i-1]) {
				continue
			}
			out = append(out, mv.Value)
		}
		scratch = scratch[:0]
	}

	for _, it := range items {
		if it.mv.BackendType == TypePrimary {
			flush()
			out = append(out, it.mv.Value)
			continue
		}
		if len(scratch) > 0 && scratch[0].BackendID != it.mv.BackendID {
			flush()
		}
		scratch = append(scratch, it.mv)
	}
	flush()
	return out
}
