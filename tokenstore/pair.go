package tokenstore

// TokenPair is the credential pair held by a client. An empty string means
// the credential is absent. Values are replaced wholesale, never patched.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// IsEmpty reports whether neither credential is present.
func (p TokenPair) IsEmpty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// HasAccess reports whether an access token is present.
func (p TokenPair) HasAccess() bool {
	return p.AccessToken != ""
}

// HasRefresh reports whether a refresh token is present.
func (p TokenPair) HasRefresh() bool {
	return p.RefreshToken != ""
}
