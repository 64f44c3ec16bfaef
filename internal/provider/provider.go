// Package provider maps an email address to the IMAP endpoint of its
// mail provider. Only the Gmail and Outlook/Hotmail families are
// supported; every other domain is rejected before any network attempt.
package provider

import (
	"errors"
	"strings"
)

// ErrUnsupported is returned for addresses outside the supported
// provider families.
var ErrUnsupported = errors.New("unsupported email provider. Currently only Gmail, Outlook and Hotmail are supported")

// Profile describes how to reach a provider's IMAP endpoint.
type Profile struct {
	Host   string
	Port   int
	UseTLS bool
}

// Resolve returns the IMAP profile for the given email address.
func Resolve(email string) (Profile, error) {
	addr := strings.ToLower(strings.TrimSpace(email))
	switch {
	case strings.HasSuffix(addr, "@gmail.com"):
		return Profile{Host: "imap.gmail.com", Port: 993, UseTLS: true}, nil
	case strings.HasSuffix(addr, "@outlook.com"), strings.HasSuffix(addr, "@hotmail.com"):
		return Profile{Host: "outlook.office365.com", Port: 993, UseTLS: true}, nil
	default:
		return Profile{}, ErrUnsupported
	}
}
