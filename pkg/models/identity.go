package models

// Identity is the authenticated user that owns a task namespace.
type Identity struct {
	ID    string `yaml:"id" json:"id"`
	Email string `yaml:"email" json:"email"`
}

// Credentials carry the sign-in or sign-up form values. Confirm is only
// consulted on sign-up.
type Credentials struct {
	Email    string
	Password string
	Confirm  string
}

// Account is a locally registered user, keyed by email in the account registry.
type Account struct {
	ID           string `yaml:"id"`
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"password_hash"`
	CreatedAt    string `yaml:"created_at"`
}
