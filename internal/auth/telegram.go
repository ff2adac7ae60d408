// Package auth verifies Telegram Mini App identity and manages session
// tokens.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidInitData = errors.New("invalid telegram init data")
	ErrStaleInitData   = errors.New("telegram init data is too old")
)

// initDataMaxAge rejects replayed init data. Telegram signs auth_date, so
// a stolen payload stops working after this window.
const initDataMaxAge = 24 * time.Hour

// TelegramUser is the profile embedded in verified init data.
type TelegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// VerifyInitData checks the HMAC signature of a Telegram WebApp initData
// payload against the bot token, per Telegram's documented scheme:
// secret = HMAC_SHA256(key="WebAppData", message=botToken), signature =
// HMAC_SHA256(key=secret, message=sorted key=value lines excluding hash).
func VerifyInitData(initData, botToken string) (*TelegramUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInitData, err)
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return nil, fmt.Errorf("%w: missing hash", ErrInvalidInitData)
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	checkString := strings.Join(lines, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	wantHash := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(wantHash), []byte(gotHash)) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidInitData)
	}

	if authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64); err != nil {
		return nil, fmt.Errorf("%w: bad auth_date", ErrInvalidInitData)
	} else if time.Since(time.Unix(authDate, 0)) > initDataMaxAge {
		return nil, ErrStaleInitData
	}

	var user TelegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil {
		return nil, fmt.Errorf("%w: bad user payload", ErrInvalidInitData)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidInitData)
	}
	return &user, nil
}
