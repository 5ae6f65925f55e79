package model

// MemberDto is the response view of a member with its team flattened.
type MemberDto struct {
	ID       uint    `json:"id"`
	Username string  `json:"username"`
	TeamName *string `json:"teamName"`
}

// NewMemberDto builds the view of m. A member without a resolved team yields
// a nil team name.
func NewMemberDto(m *Member) *MemberDto {
	return &MemberDto{
		ID:       m.ID,
		Username: m.Username,
		TeamName: m.TeamName(),
	}
}
