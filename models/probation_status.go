package models

import "strings"

// ProbationStatus is the probation record state of a defendant. It is never stored as a
// transition history; labels are derived whenever a case is read or merged.
type ProbationStatus string

const (
	ProbationStatusNoRecord        ProbationStatus = "NO_RECORD"
	ProbationStatusPossible        ProbationStatus = "POSSIBLE_NDELIUS_RECORD"
	ProbationStatusNotSentenced    ProbationStatus = "NOT_SENTENCED"
	ProbationStatusCurrent         ProbationStatus = "CURRENT"
	ProbationStatusPreviouslyKnown ProbationStatus = "PREVIOUSLY_KNOWN"
)

var probationStatusNames = map[ProbationStatus]string{
	ProbationStatusNoRecord:        "No record",
	ProbationStatusPossible:        "Possible NDelius record",
	ProbationStatusNotSentenced:    "Pre-sentence record",
	ProbationStatusCurrent:         "Current",
	ProbationStatusPreviouslyKnown: "Previously known",
}

// Name returns the human-facing label
func (s ProbationStatus) Name() string {
	if name, ok := probationStatusNames[s]; ok {
		return name
	}
	return probationStatusNames[ProbationStatusNoRecord]
}

// String returns the enum code
func (s ProbationStatus) String() string {
	return string(s)
}

// ProbationStatusOf maps an upstream status code or label to a status. Matching is
// case-insensitive against both the code and the display label; anything unrecognised
// resolves to NO_RECORD.
func ProbationStatusOf(value string) ProbationStatus {
	value = strings.TrimSpace(value)
	if value == "" {
		return ProbationStatusNoRecord
	}
	for status, name := range probationStatusNames {
		if status == ProbationStatusPossible {
			// POSSIBLE is derived from match counts, never supplied upstream
			continue
		}
		if strings.EqualFold(value, string(status)) || strings.EqualFold(value, name) {
			return status
		}
	}
	return ProbationStatusNoRecord
}

// DeriveProbationStatus applies the labelling rules:
//   - no CRN and no candidate matches: NO_RECORD
//   - no CRN and one or more matches: POSSIBLE_NDELIUS_RECORD
//   - CRN present: the supplied code mapped 1:1, NO_RECORD when unrecognised
func DeriveProbationStatus(crn string, possibleMatches int, suppliedCode string) ProbationStatus {
	if strings.TrimSpace(crn) == "" {
		if possibleMatches > 0 {
			return ProbationStatusPossible
		}
		return ProbationStatusNoRecord
	}
	return ProbationStatusOf(suppliedCode)
}
