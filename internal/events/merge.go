package events

import "sort"

// Merge combines a previously persisted event sequence with a freshly
// classified one. Events deduplicate by normalized txid with fresh entries
// winning ties, so re-classification can correct stale data. The union is
// re-sorted by (date ascending, type priority ascending) and truncated at
// the first terminal event inclusive: anything after a claim or sweep is an
// artifact of a stale fetch, not history.
//
// Merge is idempotent: merging its own output with the same fresh input
// yields the same sequence.
func Merge(existing, fresh []Event) []Event {
	byTxid := make(map[string]Event, len(existing)+len(fresh))
	order := make([]string, 0, len(existing)+len(fresh))

	for _, ev := range existing {
		key := NormalizeTxID(ev.TxID)
		if _, seen := byTxid[key]; !seen {
			order = append(order, key)
		}
		byTxid[key] = ev
	}
	for _, ev := range fresh {
		key := NormalizeTxID(ev.TxID)
		if _, seen := byTxid[key]; !seen {
			order = append(order, key)
		}
		byTxid[key] = ev
	}

	merged := make([]Event, 0, len(order))
	for _, key := range order {
		merged = append(merged, byTxid[key])
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Date != b.Date {
			// Events without a date sort after dated ones.
			if a.Date == "" {
				return false
			}
			if b.Date == "" {
				return true
			}
			return a.Date < b.Date
		}
		return a.Type.Priority() < b.Type.Priority()
	})

	for i, ev := range merged {
		if ev.Type.Terminal() {
			return merged[:i+1]
		}
	}
	return merged
}

// Equal reports whether two sequences match event for event. Amounts compare
// by value; a nil amount only equals another nil.
func Equal(a, b []Event) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || a[i].TxID != b[i].TxID || a[i].Date != b[i].Date {
			return false
		}
		switch {
		case a[i].Amount == nil && b[i].Amount == nil:
		case a[i].Amount == nil || b[i].Amount == nil:
			return false
		case *a[i].Amount != *b[i].Amount:
			return false
		}
	}
	return true
}
