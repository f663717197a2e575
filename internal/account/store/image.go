package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"krtbank/internal/account/models"
	"krtbank/internal/events"
)

// imageOf is the stored-document snapshot of an account, the same shape the
// change feed publishes as old and new images.
func imageOf(a *models.Account) events.Image {
	return events.Image{
		events.FieldID:         a.ID().String(),
		events.FieldHolderName: a.HolderName().Value(),
		events.FieldCpf:        a.Cpf().Normalized(),
		events.FieldStatus:     strconv.Itoa(int(a.Status())),
	}
}

func encodeImage(img events.Image) ([]byte, error) {
	if img == nil {
		return nil, nil
	}
	b, err := json.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return b, nil
}

func decodeImage(raw []byte) (events.Image, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var img events.Image
	if err := json.Unmarshal(raw, &img); err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
