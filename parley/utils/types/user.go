package types

// VerifyUser is the identity the browser received from its sign-in provider.
type VerifyUser struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

type VerifyRequest struct {
	FirebaseToken string     `json:"firebaseToken"`
	User          VerifyUser `json:"user"`
}

type SessionUser struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type VerifyResponse struct {
	Token string      `json:"token"`
	User  SessionUser `json:"user"`
}
