package validate

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

const MinPasswordLength = 6

var (
	ErrEmail            = errors.New("email is not valid")
	ErrPhone            = errors.New("phone is not valid")
	ErrPasswordLength   = errors.New("password must be at least 6 characters long")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// Mainland, Taiwan and Hong Kong mobile numbers, optionally with a country
// prefix. Each alternative captures the national number.
var phoneRe = regexp.MustCompile(`^(?:(?:\+?0?86-?)?(1[3-9]\d{9})|(?:\+?886-?|0)?(9\d{8})|(?:\+?852-?)?([569]\d{7}))$`)

// Email returns the normalized (trimmed, lowercased) address.
func Email(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmail
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return "", ErrEmail
	}
	at := strings.LastIndex(s, "@")
	if at <= 0 || !strings.Contains(s[at+1:], ".") {
		return "", ErrEmail
	}
	return strings.ToLower(s), nil
}

// Phone returns the national number without any country prefix. Taiwan
// numbers keep their leading 0.
func Phone(raw string) (string, error) {
	m := phoneRe.FindStringSubmatch(strings.TrimSpace(raw))
	switch {
	case m == nil:
		return "", ErrPhone
	case m[1] != "":
		return m[1], nil
	case m[2] != "":
		return "0" + m[2], nil
	default:
		return m[3], nil
	}
}

func Password(password, confirm string) error {
	var errs []error
	if len(password) < MinPasswordLength {
		errs = append(errs, ErrPasswordLength)
	}
	if password != confirm {
		errs = append(errs, ErrPasswordMismatch)
	}
	return errors.Join(errs...)
}
