package models

// CreateAccountRequest carries the raw fields of a new account.
type CreateAccountRequest struct {
	HolderName string `json:"holderName"`
	Cpf        string `json:"cpf"`
}

// UpdateAccountRequest is a partial update. A nil field is left untouched;
// Active is tri-state so callers can leave the status alone.
type UpdateAccountRequest struct {
	HolderName *string `json:"holderName,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}
