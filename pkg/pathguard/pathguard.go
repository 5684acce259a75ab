// Package pathguard rejects syntactically dangerous client paths before any
// filesystem access happens.
//
// The rules are enforced identically on every host OS: a path that would be
// unsafe on Windows is unsafe everywhere, so a tree served from Linux behaves
// the same when served from Windows.
//
// Checks are pure string operations. No function in this package touches the
// filesystem.
package pathguard

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/marmos91/dittobrowse/internal/logger"
)

// MaxPathLen is the longest accepted path, in bytes.
const MaxPathLen = 2048

// ErrRejected is the sentinel every rejection unwraps to.
var ErrRejected = errors.New("path rejected")

// Reason classifies why a path was rejected.
type Reason int

const (
	ReasonTooLong Reason = iota + 1
	ReasonInvalidUTF8
	ReasonBadCharacter
	ReasonReservedName
	ReasonWhitespace
	ReasonNonNormal
)

func (r Reason) String() string {
	switch r {
	case ReasonTooLong:
		return "too long"
	case ReasonInvalidUTF8:
		return "invalid utf-8"
	case ReasonBadCharacter:
		return "bad character"
	case ReasonReservedName:
		return "reserved device name"
	case ReasonWhitespace:
		return "leading or trailing whitespace"
	case ReasonNonNormal:
		return "non-normal component"
	default:
		return "unknown"
	}
}

// RejectedError describes a rejected path. It unwraps to ErrRejected.
type RejectedError struct {
	Reason    Reason
	Component string
}

func (e *RejectedError) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("path rejected: %s", e.Reason)
	}
	return fmt.Sprintf("path rejected: %s in component %q", e.Reason, e.Component)
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}

// Validator holds the policy knobs. The zero value is the strict policy.
type Validator struct {
	// AllowRootMarker accepts a single leading "/" as a root marker.
	AllowRootMarker bool

	// AllowTrailingSlash accepts a single trailing "/" (directory URLs).
	AllowTrailingSlash bool
}

var defaultValidator = &Validator{AllowTrailingSlash: true}

// Default returns the validator used by IsBad.
func Default() *Validator {
	return defaultValidator
}

// IsBad reports whether path must be rejected under the default policy.
// The empty path is valid and denotes the root.
func IsBad(path string) bool {
	return defaultValidator.IsBad(path)
}

// IsBad reports whether path must be rejected.
func (v *Validator) IsBad(path string) bool {
	return v.Check(path) != nil
}

// Check returns nil for an acceptable path, or a *RejectedError.
func (v *Validator) Check(path string) error {
	if path == "" {
		return nil
	}

	if len(path) > MaxPathLen {
		return &RejectedError{Reason: ReasonTooLong}
	}

	if !utf8.ValidString(path) {
		return &RejectedError{Reason: ReasonInvalidUTF8}
	}

	rest := path
	if strings.HasPrefix(rest, "/") {
		if !v.AllowRootMarker {
			return &RejectedError{Reason: ReasonNonNormal, Component: "/"}
		}
		rest = rest[1:]
		if rest == "" {
			return nil
		}
	}
	if v.AllowTrailingSlash && strings.HasSuffix(rest, "/") {
		rest = rest[:len(rest)-1]
	}

	for _, component := range strings.Split(rest, "/") {
		if err := checkComponent(component); err != nil {
			logger.Debug("pathguard: %v", err)
			return err
		}
	}

	return nil
}

func checkComponent(component string) error {
	switch component {
	case "", ".", "..":
		return &RejectedError{Reason: ReasonNonNormal, Component: component}
	}

	// Unreachable for a valid parent string, kept as a guard for callers that
	// split paths themselves.
	if !utf8.ValidString(component) {
		logger.Warn("pathguard: component is not utf-8 though the path is (%d bytes)", len(component))
		return &RejectedError{Reason: ReasonInvalidUTF8}
	}

	for _, c := range component {
		if isBadChar(c) {
			return &RejectedError{Reason: ReasonBadCharacter, Component: component}
		}
	}

	if hasOuterSpace(component) {
		return &RejectedError{Reason: ReasonWhitespace, Component: component}
	}

	stem := component
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	if hasOuterSpace(stem) {
		return &RejectedError{Reason: ReasonWhitespace, Component: component}
	}
	if isReservedName(strings.TrimSpace(stem)) {
		return &RejectedError{Reason: ReasonReservedName, Component: component}
	}

	return nil
}

func isBadChar(c rune) bool {
	if c < 0x20 || c == 0x7f {
		return true
	}
	switch c {
	case '/', '<', '>', ':', '"', '\\', '|', '?', '*':
		return true
	}
	return false
}

func hasOuterSpace(s string) bool {
	if s == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s)
	last, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(first) || unicode.IsSpace(last)
}

// isReservedName matches CON, PRN, AUX, NUL, COM0-9 and LPT0-9, ignoring case.
func isReservedName(stem string) bool {
	switch strings.ToUpper(stem) {
	case "CON", "PRN", "AUX", "NUL":
		return true
	}
	if len(stem) != 4 {
		return false
	}
	prefix := strings.ToUpper(stem[:3])
	return (prefix == "COM" || prefix == "LPT") && stem[3] >= '0' && stem[3] <= '9'
}
