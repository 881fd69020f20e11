package attendance

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/recedu/reconline/core"
)

var (
	salt    = []byte("reconline.core.attendance.token")
	NowFunc = time.Now // mockable

	// errors
	ErrInvalidCheckInToken = errors.New("invalid check-in token")
	ErrCheckInWindowClosed = errors.New("check-in window has closed")
)

// MakeCheckInToken mints a signed check-in token for a session, meant to be
// rendered as a QR code. Each mint carries a fresh nonce so displayed codes
// differ even within the same second.
func MakeCheckInToken(conf *core.Config, sessionID int) (string, error) {
	ts := NowFunc().Unix()
	// dashes delimit the token parts; strip them from the nonce
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	return makeToken(conf, sessionID, ts, nonce)
}

// VerifyCheckInToken checks a token's signature and that it was minted
// within the configured check-in window.
func VerifyCheckInToken(conf *core.Config, sessionID int, token string) error {
	if token == "" {
		return ErrInvalidCheckInToken
	}

	parts := strings.SplitN(token, "-", 3)
	if len(parts) < 3 {
		return ErrInvalidCheckInToken
	}
	tsB32, nonce := parts[0], parts[1]

	data, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(tsB32)
	if err != nil {
		return ErrInvalidCheckInToken
	}
	ts, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return ErrInvalidCheckInToken
	}

	// check that token has not been tampered with
	newToken, err := makeToken(conf, sessionID, ts, nonce)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(newToken), []byte(token)) == 0 {
		return ErrInvalidCheckInToken
	}

	// check that the mint time is within the window
	if time.Now().Sub(time.Unix(ts, 0)) > conf.Attendance.CheckInWindow {
		return ErrCheckInWindowClosed
	}
	return nil
}

func makeToken(conf *core.Config, sessionID int, ts int64, nonce string) (string, error) {
	tsB32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(strconv.FormatInt(ts, 10)))
	sig, err := sign(conf, hashValue(sessionID, ts, nonce))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", tsB32, nonce, sig), nil
}

func sign(conf *core.Config, val []byte) (string, error) {
	key := sha256.Sum256(append(salt, conf.SecretKey...))
	h := hmac.New(sha256.New, key[:])
	if _, err := h.Write(val); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func hashValue(sessionID int, ts int64, nonce string) []byte {
	var val bytes.Buffer
	val.WriteString(strconv.Itoa(sessionID))
	val.WriteString(strconv.FormatInt(ts, 10))
	val.WriteString(nonce)
	return val.Bytes()
}
