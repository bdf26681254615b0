package models

// ClientIdentity is who the authenticated user is, as far as the backend and
// the websocket topics are concerned. At least one of Phone/Email is set once
// a login succeeded.
type ClientIdentity struct {
	ID       string `json:"id,omitempty"`
	CPF      string `json:"cpf,omitempty"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Picture  string `json:"picture,omitempty"`
	UserType string `json:"userType"`
}

// Identifier returns the value used to key the dashboard endpoint and the
// join-client subscription: phone when present, email otherwise.
func (c ClientIdentity) Identifier() string {
	if c.Phone != "" {
		return c.Phone
	}
	return c.Email
}

// Session is the backend-issued credential. A Session without a token is
// never valid, whatever the flag says.
type Session struct {
	Token string `json:"token"`
	Valid bool   `json:"valid"`
}

func (s Session) IsValid() bool {
	return s.Token != "" && s.Valid
}
