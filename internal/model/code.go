package model

import (
	"errors"
	"strings"
)

// ErrInvalidCode is returned for codes that cannot be mapped to an exchange.
var ErrInvalidCode = errors.New("invalid instrument code")

// NormalizeCode turns "600519", "1" or "600519.sh" into an exchange-qualified
// ts_code such as "600519.SH" or "000001.SZ".
func NormalizeCode(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", ErrInvalidCode
	}

	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		num, suffix := s[:dot], s[dot+1:]
		if !isDigits(num) || len(num) > 6 {
			return "", ErrInvalidCode
		}
		num = padCode(num)
		switch suffix {
		case "SH", "SZ", "BJ":
			return num + "." + suffix, nil
		}
		return "", ErrInvalidCode
	}

	if !isDigits(s) || len(s) > 6 {
		return "", ErrInvalidCode
	}
	s = padCode(s)
	switch s[0] {
	case '6', '9':
		return s + ".SH", nil
	case '0', '2', '3':
		return s + ".SZ", nil
	case '4', '8':
		return s + ".BJ", nil
	}
	return "", ErrInvalidCode
}

func padCode(s string) string {
	if len(s) >= 6 {
		return s
	}
	return strings.Repeat("0", 6-len(s)) + s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
