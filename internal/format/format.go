// Package format checks the syntax of email addresses.
package format

import (
	"net/mail"
	"regexp"
	"strings"
)

const (
	maxAddressLength = 254
	maxLocalLength   = 64
)

// local part from the RFC 5322 atext set; domain is one or more dot
// separated labels with at least one dot
var addressPattern = regexp.MustCompile(
	"^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+" +
		"@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?" +
		"(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$",
)

// IsValidFormat reports whether email is a bare addr-spec with a dotted
// domain. Display names, comments and angle brackets are rejected.
func IsValidFormat(email string) bool {
	if email == "" || len(email) > maxAddressLength {
		return false
	}

	if !addressPattern.MatchString(email) {
		return false
	}

	at := strings.LastIndex(email, "@")
	if at > maxLocalLength {
		return false
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}

	// ParseAddress accepts "Name <a@b.c>"; only the bare address is allowed
	return addr.Name == "" && addr.Address == email
}

// Domain returns the substring after the last '@', or "" when there is none.
func Domain(email string) string {
	at := strings.LastIndex(email, "@")
	if at == -1 {
		return ""
	}
	return email[at+1:]
}
