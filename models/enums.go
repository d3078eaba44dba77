package models

import (
	"strings"
	"time"
)

// Sex of a defendant
type Sex string

const (
	SexMale    Sex = "MALE"
	SexFemale  Sex = "FEMALE"
	SexUnknown Sex = "UNKNOWN"
)

// ParseSex maps free text case-insensitively; absent or unrecognised input is UNKNOWN.
func ParseSex(value *string) Sex {
	if value == nil {
		return SexUnknown
	}
	switch strings.ToUpper(strings.TrimSpace(*value)) {
	case "MALE", "M":
		return SexMale
	case "FEMALE", "F":
		return SexFemale
	default:
		return SexUnknown
	}
}

// ShortCode returns M, F or N
func (s Sex) ShortCode() string {
	switch s {
	case SexMale:
		return "M"
	case SexFemale:
		return "F"
	default:
		return "N"
	}
}

// DefendantType distinguishes people from organisations
type DefendantType string

const (
	DefendantTypePerson       DefendantType = "PERSON"
	DefendantTypeOrganisation DefendantType = "ORGANISATION"
)

// IsValid checks the type is one of the known values
func (t DefendantType) IsValid() bool {
	return t == DefendantTypePerson || t == DefendantTypeOrganisation
}

// SourceType is the listing system a case came from
type SourceType string

const (
	SourceTypeLibra          SourceType = "LIBRA"
	SourceTypeCommonPlatform SourceType = "COMMON_PLATFORM"
)

// DefaultSourceType applies when a request does not name its source
const DefaultSourceType = SourceTypeLibra

// ParseSourceType defaults to LIBRA for empty or unknown values
func ParseSourceType(value string) SourceType {
	switch SourceType(strings.ToUpper(strings.TrimSpace(value))) {
	case SourceTypeCommonPlatform:
		return SourceTypeCommonPlatform
	default:
		return DefaultSourceType
	}
}

// CourtSession is the part of the day a hearing sits in
type CourtSession string

const (
	CourtSessionMorning   CourtSession = "MORNING"
	CourtSessionAfternoon CourtSession = "AFTERNOON"
	CourtSessionEvening   CourtSession = "EVENING"
)

// Session thresholds as hours of the day
const (
	afternoonStartsAt = 12
	eveningStartsAt   = 17
)

// CourtSessionFrom classifies a time of day
func CourtSessionFrom(t time.Time) CourtSession {
	switch {
	case t.Hour() < afternoonStartsAt:
		return CourtSessionMorning
	case t.Hour() < eveningStartsAt:
		return CourtSessionAfternoon
	default:
		return CourtSessionEvening
	}
}
