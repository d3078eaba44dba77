// Package reconcile merges an incoming view of a court case into the persisted one.
//
// Every function here is pure: inputs are never mutated and the result is a new graph
// whose children all point at the returned case. Records that keep their identity carry
// their surrogate key and version forward; rebuilt records have them cleared so storage
// issues new ones, and the superseded rows are removed as orphans on save.
package reconcile

import (
	"fmt"

	"court_case_service/models"
)

// Merge applies the incoming graph to the defendant identified by defendantID on the
// existing case. Other defendants are carried over untouched. The existing case must
// already hold the defendant; ErrDefendantNotFound is returned otherwise.
func Merge(existing, incoming *models.CourtCase, defendantID string) (*models.CourtCase, error) {
	current, ok := existing.FindDefendant(defendantID)
	if !ok {
		return nil, fmt.Errorf("%w: case %s has no defendant %s", models.ErrDefendantNotFound, existing.CaseID, defendantID)
	}
	update, err := incomingDefendant(incoming, defendantID)
	if err != nil {
		return nil, err
	}

	defendants := make([]models.Defendant, 0, len(existing.Defendants))
	for i := range existing.Defendants {
		d := &existing.Defendants[i]
		if d.DefendantID == defendantID {
			defendants = append(defendants, Defendant(current, update))
			continue
		}
		defendants = append(defendants, keep(d))
	}

	return assemble(existing, incoming, defendants), nil
}

// AddDefendant attaches the incoming defendant to an existing case that does not hold it
// yet. The new defendant is built fresh; the defendants already on the case are kept.
func AddDefendant(existing, incoming *models.CourtCase, defendantID string) (*models.CourtCase, error) {
	if _, ok := existing.FindDefendant(defendantID); ok {
		return Merge(existing, incoming, defendantID)
	}
	add, err := incomingDefendant(incoming, defendantID)
	if err != nil {
		return nil, err
	}

	defendants := make([]models.Defendant, 0, len(existing.Defendants)+1)
	for i := range existing.Defendants {
		defendants = append(defendants, keep(&existing.Defendants[i]))
	}
	fresh := rebuild(add)
	fresh.DefendantID = defendantID
	defendants = append(defendants, fresh)

	return assemble(existing, incoming, defendants), nil
}

// Replace swaps the whole content of an existing case for the incoming graph. Only the
// case record itself keeps its identity; every child is rebuilt.
func Replace(existing, incoming *models.CourtCase) *models.CourtCase {
	defendants := make([]models.Defendant, len(incoming.Defendants))
	for i := range incoming.Defendants {
		defendants[i] = rebuild(&incoming.Defendants[i])
	}

	c := caseFields(existing, incoming)
	c.Hearings = stripHearings(incoming.Hearings)
	c.Offences = Offences(incoming.Offences)
	c.Defendants = defendants
	return c.Link()
}

// Defendant builds the replacement for existing from the incoming values. The external
// identifier of existing is retained; the surrogate key is dropped and offences are rebuilt.
//
// Probation status is only trusted while the offender linkage is unchanged. A defendant
// relinked to a different CRN is marked PREVIOUSLY_KNOWN, one whose CRN was cleared is
// marked NO_RECORD.
func Defendant(existing, incoming *models.Defendant) models.Defendant {
	d := rebuild(incoming)
	d.DefendantID = existing.DefendantID

	oldCRN, newCRN := existing.CRN(), incoming.CRN()
	switch {
	case oldCRN == newCRN:
		d.ProbationStatus = incoming.ProbationStatus
	case newCRN == "":
		d.ProbationStatus = models.ProbationStatusNoRecord.String()
	default:
		d.ProbationStatus = models.ProbationStatusPreviouslyKnown.String()
	}
	return d
}

// DefendantOffences copies offences with their keys stripped
func DefendantOffences(offences []models.DefendantOffence) []models.DefendantOffence {
	out := make([]models.DefendantOffence, len(offences))
	for i, o := range offences {
		out[i] = models.DefendantOffence{
			Sequence: o.Sequence,
			Title:    o.Title,
			Summary:  o.Summary,
			Act:      o.Act,
		}
	}
	return out
}

// Hearings returns the incoming hearings stripped of keys when any are supplied, and a copy
// of the existing hearings, keys included, otherwise.
func Hearings(existing, incoming []models.Hearing) []models.Hearing {
	if len(incoming) > 0 {
		return stripHearings(incoming)
	}
	out := make([]models.Hearing, len(existing))
	for i, h := range existing {
		h.CourtCase = nil
		out[i] = h
	}
	return out
}

// Offences copies case-level offences with their keys stripped
func Offences(offences []models.Offence) []models.Offence {
	out := make([]models.Offence, len(offences))
	for i, o := range offences {
		out[i] = models.Offence{
			SequenceNumber: o.SequenceNumber,
			OffenceTitle:   o.OffenceTitle,
			OffenceSummary: o.OffenceSummary,
			Act:            o.Act,
		}
	}
	return out
}

func incomingDefendant(incoming *models.CourtCase, defendantID string) (*models.Defendant, error) {
	if d, ok := incoming.FindDefendant(defendantID); ok {
		return d, nil
	}
	// single-defendant payloads may omit the identifier
	if len(incoming.Defendants) == 1 {
		return &incoming.Defendants[0], nil
	}
	return nil, fmt.Errorf("%w: incoming case %s carries no defendant %s", models.ErrDefendantNotFound, incoming.CaseID, defendantID)
}

// assemble builds the final case around defendants and links every child to it
func assemble(existing, incoming *models.CourtCase, defendants []models.Defendant) *models.CourtCase {
	offences := incoming.Offences
	if len(offences) == 0 {
		offences = existing.Offences
	}

	c := caseFields(existing, incoming)
	c.Hearings = Hearings(existing.Hearings, incoming.Hearings)
	c.Offences = Offences(offences)
	c.Defendants = defendants
	return c.Link()
}

// caseFields takes scalar fields from incoming while keeping the identity of existing
func caseFields(existing, incoming *models.CourtCase) *models.CourtCase {
	caseNo := incoming.CaseNo
	if caseNo == nil {
		caseNo = existing.CaseNo
	}
	return &models.CourtCase{
		Identity:                       existing.Identity,
		CaseID:                         existing.CaseID,
		CaseNo:                         caseNo,
		SourceType:                     incoming.SourceType,
		ProbationStatus:                incoming.ProbationStatus,
		PreviouslyKnownTerminationDate: incoming.PreviouslyKnownTerminationDate,
		SuspendedSentenceOrder:         incoming.SuspendedSentenceOrder,
		Breach:                         incoming.Breach,
		PreSentenceActivity:            incoming.PreSentenceActivity,
		AwaitingPsr:                    incoming.AwaitingPsr,
	}
}

// rebuild copies a defendant with every key stripped
func rebuild(src *models.Defendant) models.Defendant {
	d := *src
	d.Identity = models.Fresh()
	d.CourtCaseID = 0
	d.CourtCase = nil
	d.NameJSON = nil
	d.AddressJSON = nil
	d.Address = cloneAddress(src.Address)
	d.Offender = cloneOffender(src.Offender)
	d.OffenderCRN = nil
	if crn := src.CRN(); crn != "" {
		d.OffenderCRN = &crn
	}
	d.Offences = DefendantOffences(src.Offences)
	return d
}

// keep copies a defendant that is not being updated, identities included
func keep(src *models.Defendant) models.Defendant {
	d := *src
	d.CourtCase = nil
	d.Address = cloneAddress(src.Address)
	d.Offender = cloneOffender(src.Offender)
	d.Offences = make([]models.DefendantOffence, len(src.Offences))
	for i, o := range src.Offences {
		o.Defendant = nil
		d.Offences[i] = o
	}
	return d
}

func stripHearings(hearings []models.Hearing) []models.Hearing {
	out := make([]models.Hearing, len(hearings))
	for i, h := range hearings {
		out[i] = models.Hearing{
			HearingDay:  h.HearingDay,
			HearingTime: h.HearingTime,
			CourtCode:   h.CourtCode,
			CourtRoom:   h.CourtRoom,
			ListNo:      h.ListNo,
		}
	}
	return out
}

func cloneAddress(a *models.AddressProperties) *models.AddressProperties {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// cloneOffender copies the linkage record. Offenders are keyed by CRN, so the surrogate
// key is left for storage to resolve.
func cloneOffender(o *models.Offender) *models.Offender {
	if o == nil {
		return nil
	}
	c := *o
	c.Identity = models.Fresh()
	return &c
}
