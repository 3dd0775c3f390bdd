package models

// Session is the locally persisted authentication state
type Session struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
	UserID       ID     `json:"user_id"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	SuiteNumber  string `json:"suite_number"`
	IsAdmin      bool   `json:"is_admin"`
}

// LoggedIn is true iff an access token is present
func (s Session) LoggedIn() bool {
	return s.AccessToken != ""
}

// DisplayName is what the navigation bar greets the user with
func (s Session) DisplayName() string {
	switch {
	case s.FirstName != "" && s.LastName != "":
		return s.FirstName + " " + s.LastName
	case s.FirstName != "":
		return s.FirstName
	default:
		return s.Email
	}
}

// User is the profile returned by login and /users/profile/
type User struct {
	ID          ID     `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Phone       string `json:"phone,omitempty"`
	Country     string `json:"country,omitempty"`
	SuiteNumber string `json:"suite_number,omitempty"`
	IsStaff     bool   `json:"is_staff,omitempty"`
}

// LoginRequest is the body of the login endpoints
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued tokens and the user profile.
// Some deployments nest the tokens under "tokens", others return them flat.
type LoginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	Tokens  *struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens,omitempty"`
	User User `json:"user"`
}

// Session converts the response into the persisted session shape
func (r *LoginResponse) Session(admin bool) Session {
	access, refresh := r.Access, r.Refresh

	if r.Tokens != nil {
		if access == "" {
			access = r.Tokens.Access
		}
		if refresh == "" {
			refresh = r.Tokens.Refresh
		}
	}

	return Session{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       r.User.ID,
		Email:        r.User.Email,
		FirstName:    r.User.FirstName,
		LastName:     r.User.LastName,
		SuiteNumber:  r.User.SuiteNumber,
		IsAdmin:      admin || r.User.IsStaff,
	}
}

// ProfileUpdate is the body of PUT /users/profile/
type ProfileUpdate struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Country   string `json:"country,omitempty"`
}
