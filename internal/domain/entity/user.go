package entity

// User is display metadata for an identity, resolved from the user directory.
type User struct {
	UserID          string `json:"userid"`
	Nickname        string `json:"nickname"`
	AvatarURL       string `json:"avatar_url,omitempty"`
	Bot             bool   `json:"bot,omitempty"`
	DepartmentOwner bool   `json:"department_owner,omitempty"`
}

// DisplayName falls back to the user id when no nickname is known.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.UserID
}

// Identity is the authenticated caller of an API operation.
type Identity struct {
	UserID    string
	SessionID string
}
