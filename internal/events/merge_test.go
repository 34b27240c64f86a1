package events

import "testing"

func amt(v float64) *float64 { return &v }

func TestMergeDeduplicatesAndFreshWins(t *testing.T) {
	existing := []Event{
		{Type: TypeFunding, TxID: "0xABC", Date: "2020-01-01 00:00:00", Amount: amt(1)},
	}
	fresh := []Event{
		// Same transaction, bare lowercase id, corrected amount.
		{Type: TypeFunding, TxID: "abc", Date: "2020-01-01 00:00:00", Amount: amt(2)},
		{Type: TypeClaim, TxID: "def", Date: "2020-02-01 00:00:00", Amount: amt(2)},
	}

	got := Merge(existing, fresh)
	if len(got) != 2 {
		t.Fatalf("expected 2 events after dedupe, got %+v", got)
	}
	if got[0].TxID != "abc" || *got[0].Amount != 2 {
		t.Fatalf("fresh entry should win the tie, got %+v", got[0])
	}
	if got[1].Type != TypeClaim {
		t.Fatalf("expected claim last, got %+v", got[1])
	}
}

func TestMergeTruncatesAfterTerminal(t *testing.T) {
	existing := []Event{
		{Type: TypeFunding, TxID: "a", Date: "2020-01-01 00:00:00"},
		{Type: TypeClaim, TxID: "b", Date: "2020-02-01 00:00:00"},
		{Type: TypeIncrease, TxID: "c", Date: "2020-03-01 00:00:00"},
		{Type: TypeSweep, TxID: "d", Date: "2020-04-01 00:00:00"},
	}

	got := Merge(existing, nil)
	if len(got) != 2 {
		t.Fatalf("everything after the first terminal event should be dropped, got %+v", got)
	}
	if got[1].Type != TypeClaim {
		t.Fatalf("sequence should end at the claim, got %+v", got)
	}
}

func TestMergeSortsByDateThenPriority(t *testing.T) {
	// Same date: funding must sort before the claim regardless of input order.
	fresh := []Event{
		{Type: TypeClaim, TxID: "b", Date: "2020-01-01 00:00:00"},
		{Type: TypeFunding, TxID: "a", Date: "2020-01-01 00:00:00"},
	}

	got := Merge(nil, fresh)
	if len(got) != 2 || got[0].Type != TypeFunding || got[1].Type != TypeClaim {
		t.Fatalf("expected [funding, claim], got %+v", got)
	}
}

func TestMergeUndatedEventsSortLast(t *testing.T) {
	fresh := []Event{
		{Type: TypeIncrease, TxID: "b"},
		{Type: TypeFunding, TxID: "a", Date: "2020-01-01 00:00:00"},
	}

	got := Merge(nil, fresh)
	if got[0].TxID != "a" || got[1].TxID != "b" {
		t.Fatalf("undated event should sort last, got %+v", got)
	}
}

func TestMergeIdempotent(t *testing.T) {
	existing := []Event{
		{Type: TypeFunding, TxID: "a", Date: "2020-01-01 00:00:00", Amount: amt(1)},
		{Type: TypeIncrease, TxID: "b", Date: "2020-01-05 00:00:00", Amount: amt(0.5)},
	}
	fresh := []Event{
		{Type: TypeIncrease, TxID: "b", Date: "2020-01-05 00:00:00", Amount: amt(0.5)},
		{Type: TypeClaim, TxID: "c", Date: "2020-02-01 00:00:00", Amount: amt(1.5)},
	}

	once := Merge(existing, fresh)
	twice := Merge(once, fresh)
	if !Equal(once, twice) {
		t.Fatalf("merge not idempotent:\n%+v\nvs\n%+v", once, twice)
	}
}

func TestMergeEmptyFreshNormalizesExisting(t *testing.T) {
	existing := []Event{
		{Type: TypeClaim, TxID: "c", Date: "2020-02-01 00:00:00"},
		{Type: TypeFunding, TxID: "a", Date: "2020-01-01 00:00:00"},
		{Type: TypeFunding, TxID: "A", Date: "2020-01-01 00:00:00"},
	}

	got := Merge(existing, nil)
	if len(got) != 2 {
		t.Fatalf("expected dedupe+sort+truncate of existing alone, got %+v", got)
	}
	if got[0].Type != TypeFunding || got[1].Type != TypeClaim {
		t.Fatalf("expected [funding, claim], got %+v", got)
	}
}

func TestMergeExistingFundingWithFreshClaim(t *testing.T) {
	existing := []Event{
		{Type: TypeFunding, TxID: "a", Date: "2020-01-01 00:00:00"},
	}
	fresh := []Event{
		{Type: TypeFunding, TxID: "a", Date: "2020-01-01 00:00:00"},
		{Type: TypeClaim, TxID: "b", Date: "2020-02-01 00:00:00"},
	}

	got := Merge(existing, fresh)
	if len(got) != 2 {
		t.Fatalf("expected no duplicate for a, got %+v", got)
	}
	if got[0].TxID != "a" || got[1].TxID != "b" {
		t.Fatalf("expected [a, b], got %+v", got)
	}
}

func TestNormalizeTxID(t *testing.T) {
	cases := map[string]string{
		"0xABCDEF": "abcdef",
		"AbCdEf":   "abcdef",
		"abcdef":   "abcdef",
	}
	for in, want := range cases {
		if got := NormalizeTxID(in); got != want {
			t.Errorf("NormalizeTxID(%q) = %q, want %q", in, got, want)
		}
	}
}
