package settings

import "time"

// Setting is one key-value pair of hospital configuration (name, address,
// tax numbers, receipt footer text).
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Logo is the hospital logo served to report and receipt headers.
type Logo struct {
	Data        []byte    `db:"data" json:"-"`
	ContentType string    `db:"content_type" json:"content_type"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
