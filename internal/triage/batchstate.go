package triage

import (
	"time"

	"github.com/opensource-health/harrier/internal/domain"
)

const dateLayout = "2006-01-02"

// BatchState is the anomaly detector's memory for one pipeline run:
// an append-only record of the valid claims seen so far, used for
// duplicate lookups, and a running per-provider count. Each run owns
// a freshly constructed BatchState; nothing survives the batch.
type BatchState struct {
	entries        []stateEntry
	providerCounts map[string]int
}

type stateEntry struct {
	claimID       string
	memberID      string
	providerID    string
	procedureCode string
	date          time.Time
	dateOK        bool
}

// NewBatchState returns an empty state for one run.
func NewBatchState() *BatchState {
	return &BatchState{
		providerCounts: make(map[string]int),
	}
}

// Record appends a valid claim to the state. Callers must record
// every valid claim immediately after its duplicate check, so that
// later claims in submission order see it.
func (s *BatchState) Record(c domain.Claim) {
	date, err := time.Parse(dateLayout, c.DateOfService)
	s.entries = append(s.entries, stateEntry{
		claimID:       c.ClaimID,
		memberID:      c.MemberID,
		providerID:    c.ProviderID,
		procedureCode: c.ProcedureCode,
		date:          date,
		dateOK:        err == nil,
	})
	s.providerCounts[c.ProviderID]++
}

// FindDuplicate reports the claim ID of an earlier entry with the
// same member, provider and procedure whose date of service falls
// within windowDays (inclusive) of the claim's. Exact self-matches
// by claim ID are skipped. An unparseable date on either side means
// duplication cannot be determined for that pair, so the pair is
// skipped rather than flagged.
func (s *BatchState) FindDuplicate(c domain.Claim, windowDays int) (string, bool) {
	date, err := time.Parse(dateLayout, c.DateOfService)
	if err != nil {
		return "", false
	}

	for _, e := range s.entries {
		if e.claimID == c.ClaimID {
			continue
		}
		if e.memberID != c.MemberID || e.providerID != c.ProviderID || e.procedureCode != c.ProcedureCode {
			continue
		}
		if !e.dateOK {
			continue
		}

		days := int(date.Sub(e.date).Hours() / 24)
		if days < 0 {
			days = -days
		}
		if days <= windowDays {
			return e.claimID, true
		}
	}

	return "", false
}

// ProviderCount returns the number of valid claims recorded for the
// provider so far, including the current one if already recorded.
func (s *BatchState) ProviderCount(providerID string) int {
	return s.providerCounts[providerID]
}
