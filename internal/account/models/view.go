package models

// AccountView is the read projection handed to callers and stored in the
// cache. Cpf is the normalized value.
type AccountView struct {
	ID         string `json:"id"`
	HolderName string `json:"holderName"`
	Cpf        string `json:"cpf"`
	Status     Status `json:"status"`
}

func NewAccountView(a *Account) AccountView {
	return AccountView{
		ID:         a.ID().String(),
		HolderName: a.HolderName().Value(),
		Cpf:        a.Cpf().Normalized(),
		Status:     a.Status(),
	}
}
