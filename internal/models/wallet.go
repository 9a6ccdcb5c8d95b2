package models

import "time"

// Wallet - адрес, прошедший nonce challenge хотя бы один раз.
type Wallet struct {
	Address        string    `json:"address"`
	LoginCount     int64     `json:"loginCount"`
	FirstSeenAt    time.Time `json:"firstSeenAt"`
	LastVerifiedAt time.Time `json:"lastVerifiedAt"`
}
