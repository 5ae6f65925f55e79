package model

import "errors"

var (
	// ErrMemberNotFound indicates that the requested member does not exist.
	ErrMemberNotFound = errors.New("member not found")
	// ErrTeamNotFound indicates that the requested team does not exist.
	ErrTeamNotFound = errors.New("team not found")
	// ErrInvalidMemberID indicates a member identifier that is not a positive integer.
	ErrInvalidMemberID = errors.New("invalid member ID")
)
