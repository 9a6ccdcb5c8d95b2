package models

// DisclosureRequest - запрос верификатора на раскрытие подмножества claims (SDR).
// Не сохраняется, живёт только в рамках обмена.
type DisclosureRequest struct {
	ID        string   `json:"id"`
	Requested []string `json:"requested"`
}
