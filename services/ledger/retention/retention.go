// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

// Package retention decides which snapshot records an operator may
// delete.
//
// The evaluator is deliberately pure: it never touches storage, it only
// partitions the records it is given into keep and delete sets. Acting
// on a plan is a separate concern, so a dry run and a live run compute
// exactly the same partition.
package retention

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidPolicy is returned for policies whose parameters make no
// sense for their kind.
var ErrInvalidPolicy = errors.New("invalid retention policy")

// PolicyKind selects the retention rule.
type PolicyKind int

const (
	// KindByAge deletes records older than a maximum age.
	KindByAge PolicyKind = iota

	// KindByCount keeps only the most recent N records per branch.
	KindByCount

	// KindCombined deletes the union of both rules' delete sets.
	KindCombined
)

// String returns the kind's wire name.
func (k PolicyKind) String() string {
	switch k {
	case KindByAge:
		return "by_age"
	case KindByCount:
		return "by_count"
	case KindCombined:
		return "combined"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Policy is one retention rule.
type Policy struct {
	// Kind selects the rule.
	Kind PolicyKind `json:"kind"`

	// MaxAge bounds record age for KindByAge and KindCombined.
	MaxAge time.Duration `json:"max_age"`

	// MaxCount bounds records kept per branch for KindByCount and
	// KindCombined.
	MaxCount int `json:"max_count"`
}

// ByAge builds a policy deleting records strictly older than maxAge.
func ByAge(maxAge time.Duration) Policy {
	return Policy{Kind: KindByAge, MaxAge: maxAge}
}

// ByCount builds a policy keeping the maxCount most recent records of
// each branch.
func ByCount(maxCount int) Policy {
	return Policy{Kind: KindByCount, MaxCount: maxCount}
}

// Combined builds a policy deleting everything either rule would
// delete.
func Combined(maxAge time.Duration, maxCount int) Policy {
	return Policy{Kind: KindCombined, MaxAge: maxAge, MaxCount: maxCount}
}

// Validate checks the policy parameters against its kind.
func (p Policy) Validate() error {
	switch p.Kind {
	case KindByAge:
		if p.MaxAge <= 0 {
			return fmt.Errorf("%w: %s needs a positive max_age", ErrInvalidPolicy, p.Kind)
		}
	case KindByCount:
		if p.MaxCount < 0 {
			return fmt.Errorf("%w: %s needs a non-negative max_count", ErrInvalidPolicy, p.Kind)
		}
	case KindCombined:
		if p.MaxAge <= 0 {
			return fmt.Errorf("%w: %s needs a positive max_age", ErrInvalidPolicy, p.Kind)
		}
		if p.MaxCount < 0 {
			return fmt.Errorf("%w: %s needs a non-negative max_count", ErrInvalidPolicy, p.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidPolicy, int(p.Kind))
	}
	return nil
}

// Plan is the result of one evaluation.
type Plan struct {
	// ToKeep are the surviving records, ascending by creation time then
	// id.
	ToKeep []SnapshotMetadata `json:"to_keep"`

	// ToDelete are the records the policy would remove, same order.
	ToDelete []SnapshotMetadata `json:"to_delete"`

	// DryRun records how the evaluation was requested. It never changes
	// the partition.
	DryRun bool `json:"dry_run"`

	// Summary is a one-line human description of the outcome.
	Summary string `json:"summary"`
}

// Evaluate partitions records under the policy using the current time
// as the age reference.
//
// # Description
//
// Thin wrapper over EvaluateAt with time.Now(). Prefer EvaluateAt in
// tests.
func Evaluate(policy Policy, records []SnapshotMetadata, dryRun bool) (Plan, error) {
	return EvaluateAt(policy, records, time.Now(), dryRun)
}

// EvaluateAt partitions records under the policy as of a fixed instant.
//
// # Description
//
// Pure function of its arguments. Age comparisons are strict: a record
// exactly max_age old survives. Count limits apply per branch and keep
// the most recent records, breaking creation-time ties by id so equal
// timestamps cannot flap between runs. The combined kind deletes the
// union of both rules' delete sets. The input slice is never modified.
//
// # Inputs
//
//   - policy: The rule to apply. Validated before use.
//   - records: Snapshot records under consideration, any order.
//   - now: The age reference instant.
//   - dryRun: Copied into the plan; informational only.
//
// # Outputs
//
//   - Plan: Keep and delete sets, each sorted by creation time then id.
//   - error: ErrInvalidPolicy when the policy fails validation.
func EvaluateAt(policy Policy, records []SnapshotMetadata, now time.Time, dryRun bool) (Plan, error) {
	if err := policy.Validate(); err != nil {
		return Plan{}, err
	}

	doomed := make(map[string]bool)
	switch policy.Kind {
	case KindByAge:
		markByAge(records, policy.MaxAge, now, doomed)
	case KindByCount:
		markByCount(records, policy.MaxCount, doomed)
	case KindCombined:
		markByAge(records, policy.MaxAge, now, doomed)
		markByCount(records, policy.MaxCount, doomed)
	}

	plan := Plan{
		ToKeep:   make([]SnapshotMetadata, 0, len(records)-len(doomed)),
		ToDelete: make([]SnapshotMetadata, 0, len(doomed)),
		DryRun:   dryRun,
	}
	for _, rec := range records {
		if doomed[rec.ID] {
			plan.ToDelete = append(plan.ToDelete, rec)
		} else {
			plan.ToKeep = append(plan.ToKeep, rec)
		}
	}
	sortRecords(plan.ToKeep)
	sortRecords(plan.ToDelete)

	mode := "apply"
	if dryRun {
		mode = "dry-run"
	}
	plan.Summary = fmt.Sprintf("%s %s: keep %d, delete %d of %d records",
		policy.Kind, mode, len(plan.ToKeep), len(plan.ToDelete), len(records))
	return plan, nil
}

// markByAge marks records strictly older than maxAge.
func markByAge(records []SnapshotMetadata, maxAge time.Duration, now time.Time, doomed map[string]bool) {
	cutoff := now.UnixMilli() - maxAge.Milliseconds()
	for _, rec := range records {
		if rec.CreatedAt < cutoff {
			doomed[rec.ID] = true
		}
	}
}

// markByCount marks everything beyond the maxCount most recent records
// of each branch.
func markByCount(records []SnapshotMetadata, maxCount int, doomed map[string]bool) {
	byBranch := make(map[string][]SnapshotMetadata)
	for _, rec := range records {
		byBranch[rec.BranchName] = append(byBranch[rec.BranchName], rec)
	}
	for _, group := range byBranch {
		if len(group) <= maxCount {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if group[i].CreatedAt != group[j].CreatedAt {
				return group[i].CreatedAt > group[j].CreatedAt
			}
			return group[i].ID < group[j].ID
		})
		for _, rec := range group[maxCount:] {
			doomed[rec.ID] = true
		}
	}
}

func sortRecords(records []SnapshotMetadata) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt < records[j].CreatedAt
		}
		return records[i].ID < records[j].ID
	})
}
