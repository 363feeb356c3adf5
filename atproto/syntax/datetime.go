package syntax

import (
	"time"
)

// Preferred atproto datetime layout: UTC, millisecond precision, "Z" suffix.
const AtprotoDatetimeLayout = "2006-01-02T15:04:05.000Z"

// Datetime string as written in record "createdAt" fields.
type Datetime string

// Current time formatted with [AtprotoDatetimeLayout].
func DatetimeNow() Datetime {
	return Datetime(time.Now().UTC().Format(AtprotoDatetimeLayout))
}

func (d Datetime) String() string {
	return string(d)
}
