package events

// Operation is the kind of mutation a change record describes.
type Operation string

const (
	OperationInsert Operation = "INSERT"
	OperationModify Operation = "MODIFY"
	OperationRemove Operation = "REMOVE"
)

// Field names present in change record images.
const (
	FieldID         = "Id"
	FieldHolderName = "HolderName"
	FieldCpf        = "Cpf"
	FieldIdentifier = "Identifier"
	FieldStatus     = "Status"
)

// Image is a flat snapshot of a stored account, field name to value.
type Image map[string]string

// Lookup returns the first present value among names.
func (img Image) Lookup(names ...string) (string, bool) {
	for _, name := range names {
		if v, ok := img[name]; ok {
			return v, true
		}
	}
	return "", false
}

// ChangeRecord is one change-data-capture notification. OldImage is present
// for MODIFY and REMOVE, NewImage for INSERT and MODIFY.
type ChangeRecord struct {
	EventID   string    `json:"eventId"`
	Operation Operation `json:"operation"`
	OldImage  Image     `json:"oldImage,omitempty"`
	NewImage  Image     `json:"newImage,omitempty"`
}

// AccountID returns the account the record refers to, preferring the new
// image. It is empty when neither image carries an id.
func (r ChangeRecord) AccountID() string {
	if id, ok := r.NewImage.Lookup(FieldID); ok {
		return id
	}
	id, _ := r.OldImage.Lookup(FieldID)
	return id
}
