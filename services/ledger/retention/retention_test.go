// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id, branch string, createdAt int64) SnapshotMetadata {
	return SnapshotMetadata{ID: id, BranchName: branch, CreatedAt: createdAt, Hash: "h-" + id, SizeBytes: 10}
}

func ids(records []SnapshotMetadata) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestPolicy_Validate(t *testing.T) {
	cases := []struct {
		name   string
		policy Policy
		ok     bool
	}{
		{"by_age positive", ByAge(time.Hour), true},
		{"by_age zero", ByAge(0), false},
		{"by_age negative", ByAge(-time.Minute), false},
		{"by_count zero keeps nothing but is legal", ByCount(0), true},
		{"by_count positive", ByCount(5), true},
		{"by_count negative", ByCount(-1), false},
		{"combined valid", Combined(time.Hour, 3), true},
		{"combined bad age", Combined(0, 3), false},
		{"combined bad count", Combined(time.Hour, -2), false},
		{"unknown kind", Policy{Kind: PolicyKind(42), MaxAge: time.Hour}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPolicy)
			}
		})
	}
}

func TestPolicyKind_String(t *testing.T) {
	assert.Equal(t, "by_age", KindByAge.String())
	assert.Equal(t, "by_count", KindByCount.String())
	assert.Equal(t, "combined", KindCombined.String())
	assert.Contains(t, PolicyKind(9).String(), "unknown")
}

func TestEvaluateAt_ByAgeBoundaryIsStrict(t *testing.T) {
	now := time.UnixMilli(10_000)
	records := []SnapshotMetadata{
		rec("older", "alpha", 4_999),   // one ms past the cutoff
		rec("exact", "alpha", 5_000),   // exactly max_age old
		rec("younger", "alpha", 5_001), // inside the window
	}

	plan, err := EvaluateAt(ByAge(5*time.Second), records, now, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"older"}, ids(plan.ToDelete))
	assert.Equal(t, []string{"exact", "younger"}, ids(plan.ToKeep))
}

func TestEvaluateAt_ByCountIsPerBranch(t *testing.T) {
	records := []SnapshotMetadata{
		rec("a1", "alpha", 1_000),
		rec("a2", "alpha", 2_000),
		rec("a3", "alpha", 3_000),
		rec("b1", "beta", 1_500),
		rec("b2", "beta", 2_500),
	}

	plan, err := EvaluateAt(ByCount(2), records, time.UnixMilli(10_000), false)
	require.NoError(t, err)

	// Only alpha exceeds the limit; beta's two records both survive.
	assert.Equal(t, []string{"a1"}, ids(plan.ToDelete))
	assert.Equal(t, []string{"b1", "a2", "b2", "a3"}, ids(plan.ToKeep))
}

func TestEvaluateAt_ByCountTiesBreakOnID(t *testing.T) {
	records := []SnapshotMetadata{
		rec("a", "alpha", 1_000),
		rec("b", "alpha", 1_000),
	}

	plan, err := EvaluateAt(ByCount(1), records, time.UnixMilli(10_000), false)
	require.NoError(t, err)

	// Equal timestamps: the smaller id ranks as more recent, so the
	// partition cannot flap between runs.
	assert.Equal(t, []string{"a"}, ids(plan.ToKeep))
	assert.Equal(t, []string{"b"}, ids(plan.ToDelete))
}

func TestEvaluateAt_ByCountZeroDeletesEverything(t *testing.T) {
	records := []SnapshotMetadata{
		rec("a1", "alpha", 1_000),
		rec("b1", "beta", 2_000),
	}

	plan, err := EvaluateAt(ByCount(0), records, time.UnixMilli(10_000), false)
	require.NoError(t, err)
	assert.Empty(t, plan.ToKeep)
	assert.Len(t, plan.ToDelete, 2)
}

// TestEvaluateAt_CombinedIsTheUnion straddles the age cutoff across two
// branches and checks a record doomed by either rule is deleted exactly
// once.
func TestEvaluateAt_CombinedIsTheUnion(t *testing.T) {
	now := time.UnixMilli(100_000) // cutoff at 40_000 with max_age 60s
	records := []SnapshotMetadata{
		rec("a-old", "alpha", 10_000),  // doomed by age AND count
		rec("a-mid", "alpha", 50_000),  // doomed by count only
		rec("a-new", "alpha", 90_000),  // survives
		rec("b-old", "beta", 30_000),   // doomed by age AND count
		rec("b-new", "beta", 95_000),   // survives
	}

	plan, err := EvaluateAt(Combined(60*time.Second, 1), records, now, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"a-old", "b-old", "a-mid"}, ids(plan.ToDelete))
	assert.Equal(t, []string{"a-new", "b-new"}, ids(plan.ToKeep))
}

func TestEvaluateAt_DryRunDoesNotChangeThePartition(t *testing.T) {
	now := time.UnixMilli(100_000)
	records := []SnapshotMetadata{
		rec("a1", "alpha", 10_000),
		rec("a2", "alpha", 90_000),
	}

	dry, err := EvaluateAt(ByAge(time.Minute), records, now, true)
	require.NoError(t, err)
	live, err := EvaluateAt(ByAge(time.Minute), records, now, false)
	require.NoError(t, err)

	assert.Equal(t, dry.ToKeep, live.ToKeep)
	assert.Equal(t, dry.ToDelete, live.ToDelete)
	assert.True(t, dry.DryRun)
	assert.False(t, live.DryRun)
	assert.Contains(t, dry.Summary, "dry-run")
	assert.Contains(t, live.Summary, "apply")
}

func TestEvaluateAt_InputIsNotModified(t *testing.T) {
	records := []SnapshotMetadata{
		rec("z", "alpha", 3_000),
		rec("a", "alpha", 1_000),
		rec("m", "beta", 2_000),
	}
	original := append([]SnapshotMetadata(nil), records...)

	_, err := EvaluateAt(Combined(time.Second, 1), records, time.UnixMilli(10_000), false)
	require.NoError(t, err)
	assert.Equal(t, original, records)
}

func TestEvaluateAt_OutputOrdering(t *testing.T) {
	records := []SnapshotMetadata{
		rec("late", "alpha", 9_000),
		rec("tie-b", "beta", 5_000),
		rec("tie-a", "alpha", 5_000),
		rec("early", "beta", 1_000),
	}

	plan, err := EvaluateAt(ByAge(time.Hour), records, time.UnixMilli(10_000), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "tie-a", "tie-b", "late"}, ids(plan.ToKeep))
}

func TestEvaluateAt_EmptyInput(t *testing.T) {
	plan, err := EvaluateAt(ByAge(time.Hour), nil, time.Now(), false)
	require.NoError(t, err)
	assert.Empty(t, plan.ToKeep)
	assert.Empty(t, plan.ToDelete)
}

func TestEvaluate_RejectsInvalidPolicy(t *testing.T) {
	_, err := Evaluate(ByAge(0), nil, false)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}
