package models

import (
	"encoding/json"
	"errors"
)

// IssueType classifies why a row was quarantined instead of auto-merged.
type IssueType string

const (
	IssueTypeMissingName    IssueType = "MISSING_NAME"
	IssueTypeDuplicateIndex IssueType = "DUPLICATE_INDEX"
	IssueTypeConflict       IssueType = "CONFLICT"
)

func (t *IssueType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("issue type must be string")
	}
	switch str {
	case "MISSING_NAME":
		*t = IssueTypeMissingName
	case "DUPLICATE_INDEX":
		*t = IssueTypeDuplicateIndex
	case "CONFLICT":
		*t = IssueTypeConflict
	default:
		return errors.New("invalid issue type")
	}
	return nil
}

// FlagSource records which ingestion channel produced a flagged record.
type FlagSource string

const (
	FlagSourceManual FlagSource = "manual"
	FlagSourceExcel  FlagSource = "excel"
)

func (s *FlagSource) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("source must be string")
	}
	switch str {
	case "manual":
		*s = FlagSourceManual
	case "excel":
		*s = FlagSourceExcel
	default:
		return errors.New("invalid source")
	}
	return nil
}

// ResolutionAction is the operator's decision for a pending flagged record.
type ResolutionAction string

const (
	ResolutionActionApprove ResolutionAction = "approve"
	ResolutionActionEdit    ResolutionAction = "edit"
	ResolutionActionMerge   ResolutionAction = "merge"
)

func (a *ResolutionAction) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("action must be string")
	}
	switch str {
	case "approve":
		*a = ResolutionActionApprove
	case "edit":
		*a = ResolutionActionEdit
	case "merge":
		*a = ResolutionActionMerge
	default:
		return errors.New("invalid action")
	}
	return nil
}

// FlagResolution is the value stamped onto a flagged record once resolved.
type FlagResolution string

const (
	FlagResolutionApproved FlagResolution = "approved"
	FlagResolutionEdit     FlagResolution = "edit"
	FlagResolutionMerge    FlagResolution = "merge"
)

// Resolution returns the history value recorded for an action.
func (a ResolutionAction) Resolution() FlagResolution {
	switch a {
	case ResolutionActionApprove:
		return FlagResolutionApproved
	case ResolutionActionEdit:
		return FlagResolutionEdit
	case ResolutionActionMerge:
		return FlagResolutionMerge
	}
	return ""
}

type UserRole string

const (
	UserRoleTA       UserRole = "TA"
	UserRoleLecturer UserRole = "LECTURER"
)

func (r *UserRole) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("role must be string")
	}
	switch str {
	case "TA":
		*r = UserRoleTA
	case "LECTURER":
		*r = UserRoleLecturer
	default:
		return errors.New("invalid role")
	}
	return nil
}
