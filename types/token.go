package types

// TokenTypeBearer is the only token type issued by the API.
const TokenTypeBearer = "bearer"

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// ConfirmationMessage is the queued request to send an email-confirmation
// letter. It is published by the API and consumed by the mail worker.
type ConfirmationMessage struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	BaseURL  string `json:"base_url"`
}
