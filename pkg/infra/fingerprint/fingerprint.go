package fingerprint

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/avct/uasurfer"
)

// Fingerprint identifies a caller of the check API across requests. Fields
// may be empty; the encoded ID keeps them positional so two callers with
// partially overlapping identity material never collide.
type Fingerprint struct {
	UserID    string `json:"user_id"`
	Token     string `json:"token"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

func NewFromID(id string) (*Fingerprint, error) {
	decoded, err := base64.StdEncoding.DecodeString(id)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(string(decoded), "|")
	if len(parts) != 4 {
		return nil, errors.New("invalid fingerprint ID format")
	}
	return &Fingerprint{
		UserID:    parts[0],
		Token:     parts[1],
		IP:        parts[2],
		UserAgent: parts[3],
	}, nil
}

// ID encodes the fingerprint as an opaque token. The encoding is reversible
// so a rate-limit key can be traced back to the caller it throttled.
func (f Fingerprint) ID() string {
	raw := f.UserID + "|" + f.Token + "|" + f.IP + "|" + f.UserAgent
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DeviceClass buckets the caller's user agent into a coarse device family.
// Server-side SDK callers, which dominate check traffic, report "unknown".
func (f Fingerprint) DeviceClass() string {
	if f.UserAgent == "" {
		return "unknown"
	}
	ua := uasurfer.Parse(f.UserAgent)
	switch ua.DeviceType {
	case uasurfer.DeviceComputer:
		return "computer"
	case uasurfer.DevicePhone:
		return "phone"
	case uasurfer.DeviceTablet:
		return "tablet"
	case uasurfer.DeviceConsole:
		return "console"
	case uasurfer.DeviceWearable:
		return "wearable"
	case uasurfer.DeviceTV:
		return "tv"
	default:
		return "unknown"
	}
}
