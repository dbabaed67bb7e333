package initdata

import (
	"encoding/json"
	"strconv"
)

// User is the platform user a payload was issued for.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
	IsPremium    bool   `json:"is_premium"`
}

// IDString returns the string-encoded platform identifier used as the identity key.
func (u User) IDString() string {
	return strconv.FormatInt(u.ID, 10)
}

// User extracts the launching user. Telegram sends a JSON object in the
// "user" field; payloads built by hand may carry flat user_id/first_name/...
// fields instead, which are accepted as a fallback.
func (p Payload) User() (User, error) {
	if raw, ok := p.Get("user"); ok {
		var u User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return User{}, ErrMalformedPayload
		}
		if u.ID <= 0 {
			return User{}, ErrMalformedPayload
		}
		return u, nil
	}

	rawID, ok := p.Get("user_id")
	if !ok {
		return User{}, ErrMalformedPayload
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return User{}, ErrMalformedPayload
	}
	u := User{ID: id}
	u.FirstName, _ = p.Get("first_name")
	u.LastName, _ = p.Get("last_name")
	u.Username, _ = p.Get("username")
	u.LanguageCode, _ = p.Get("language_code")
	if v, ok := p.Get("is_premium"); ok {
		u.IsPremium, _ = strconv.ParseBool(v)
	}
	return u, nil
}
