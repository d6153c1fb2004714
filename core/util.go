package core

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/volatiletech/null/v8"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// NullString cleans `s` and returns an invalid null.String when nothing is left.
func NullString(s string) null.String {
	s = CleanString(s)
	return null.NewString(s, s != "")
}

// NullStringPtr is NullString for optional inputs.
func NullStringPtr(s *string) null.String {
	if s == nil {
		return null.String{}
	}
	return NullString(*s)
}

// NullIntPtr converts an optional input.
func NullIntPtr(i *int) null.Int {
	if i == nil {
		return null.Int{}
	}
	return null.IntFrom(*i)
}

// Truncate cuts `s` to at most `n` runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Clamp bounds `v` to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Getwd tries to find the project root (the directory holding go.mod).
// go test runs in the package directory, so config files would not be found otherwise.
// Falls back to the working directory for deployed binaries.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
