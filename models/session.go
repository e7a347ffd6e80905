package models

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"` // CREATOR, EVENTEE
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Session is the caller's credential, passed explicitly to every backend call.
type Session struct {
	AccessToken string
	SessionID   string
	User        User
}

func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}
