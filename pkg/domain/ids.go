// Package domain holds the typed identifiers shared by every module.
//
// Each ID is a distinct named uuid.UUID so a SiteID can never be passed where a
// CompanyID is expected. All parsing happens at trust boundaries through the
// Parse* functions, which reject empty, malformed and nil UUIDs.
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "rcaflow/pkg/domain-errors"
)

type (
	CompanyID  uuid.UUID
	SiteID     uuid.UUID
	UserID     uuid.UUID
	EventID    uuid.UUID
	AnalysisID uuid.UUID
	EvidenceID uuid.UUID
)

func parseUUID(kind, raw string) (uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if !utf8.ValidString(raw) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

func ParseCompanyID(s string) (CompanyID, error) {
	u, err := parseUUID("company_id", s)
	return CompanyID(u), err
}

func ParseSiteID(s string) (SiteID, error) {
	u, err := parseUUID("site_id", s)
	return SiteID(u), err
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user_id", s)
	return UserID(u), err
}

func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID("event_id", s)
	return EventID(u), err
}

func ParseAnalysisID(s string) (AnalysisID, error) {
	u, err := parseUUID("analysis_id", s)
	return AnalysisID(u), err
}

func ParseEvidenceID(s string) (EvidenceID, error) {
	u, err := parseUUID("evidence_id", s)
	return EvidenceID(u), err
}

func NewCompanyID() CompanyID   { return CompanyID(uuid.New()) }
func NewSiteID() SiteID         { return SiteID(uuid.New()) }
func NewUserID() UserID         { return UserID(uuid.New()) }
func NewEventID() EventID       { return EventID(uuid.New()) }
func NewAnalysisID() AnalysisID { return AnalysisID(uuid.New()) }
func NewEvidenceID() EvidenceID { return EvidenceID(uuid.New()) }

func (id CompanyID) String() string  { return uuid.UUID(id).String() }
func (id SiteID) String() string     { return uuid.UUID(id).String() }
func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id EventID) String() string    { return uuid.UUID(id).String() }
func (id AnalysisID) String() string { return uuid.UUID(id).String() }
func (id EvidenceID) String() string { return uuid.UUID(id).String() }

func (id CompanyID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id SiteID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AnalysisID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EvidenceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Documents are stored as JSON, so IDs marshal as their canonical string form.
// An empty string decodes to the nil ID.

func unmarshalID(dst *uuid.UUID, b []byte) error {
	if len(b) == 0 {
		*dst = uuid.Nil
		return nil
	}
	return dst.UnmarshalText(b)
}

func (id CompanyID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id SiteID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id AnalysisID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id EvidenceID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *CompanyID) UnmarshalText(b []byte) error  { return unmarshalID((*uuid.UUID)(id), b) }
func (id *SiteID) UnmarshalText(b []byte) error     { return unmarshalID((*uuid.UUID)(id), b) }
func (id *UserID) UnmarshalText(b []byte) error     { return unmarshalID((*uuid.UUID)(id), b) }
func (id *EventID) UnmarshalText(b []byte) error    { return unmarshalID((*uuid.UUID)(id), b) }
func (id *AnalysisID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
func (id *EvidenceID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
