package jwt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Claim names read from a verified token.
const (
	ClaimSubject = "sub"
	ClaimUserID  = "user_id"
)

// Claims are the verified claims the gateway forwards.
type Claims struct {
	// Subject is the "sub" claim, forwarded as the username.
	Subject string
	// UserID is the "user_id" claim rendered as a string.
	UserID string
	// ExpiresAt is the zero time when the token carries no "exp".
	ExpiresAt time.Time
}

// formatClaim renders a scalar claim value. Whole numbers are rendered
// without a fraction.
func formatClaim(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case json.Number:
		return val.String(), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case int:
		return strconv.Itoa(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		return "", fmt.Errorf("unsupported claim type %T", v)
	}
}
