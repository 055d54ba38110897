// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors turns network failures talking to the credential service
// into user-friendly explanations.
package httperrors

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
)

// Class is the category of a network failure.
type Class int

const (
	ClassGeneric Class = iota
	ClassTimeout
	ClassDNS
	ClassRefused
	ClassTLS
	ClassServer
)

// Description is a user-facing explanation of a network failure.
type Description struct {
	Class   Class
	Summary string
	Hints   []string
}

// Classify detects the kind of network failure behind err.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassGeneric
	case isTimeoutError(err):
		return ClassTimeout
	case isDNSError(err):
		return ClassDNS
	case isConnectionRefusedError(err):
		return ClassRefused
	case isSSLError(err):
		return ClassTLS
	case isServerError(err.Error()):
		return ClassServer
	default:
		return ClassGeneric
	}
}

// Describe explains err for a user. host is used in the message when known.
func Describe(err error, host string) Description {
	if host == "" {
		host = "the credential service"
	}
	switch c := Classify(err); c {
	case ClassTimeout:
		return Description{Class: c, Summary: "connection to " + host + " timed out", Hints: []string{
			"Slow internet connection",
			"Server is under heavy load",
			"Network firewall is blocking the connection",
		}}
	case ClassDNS:
		return Description{Class: c, Summary: "cannot resolve " + host, Hints: []string{
			"Your internet connection is working",
			"DNS settings are correct",
			"backend.base_url in your config points to the right host",
		}}
	case ClassRefused:
		return Description{Class: c, Summary: host + " refused the connection", Hints: []string{
			"The service is temporarily down",
			"Wrong server address or port",
		}}
	case ClassTLS:
		return Description{Class: c, Summary: "secure connection to " + host + " failed", Hints: []string{
			"Check your system date and time",
			"Verify network proxy settings",
		}}
	case ClassServer:
		return Description{Class: c, Summary: host + " encountered an internal error", Hints: []string{
			"This is not a problem with your setup",
			"Please try again in a few minutes",
		}}
	default:
		return Description{Class: c, Summary: "cannot connect to " + host, Hints: []string{
			"Your internet connection",
			"Firewall settings that might block the request",
		}}
	}
}

// Print shows the description of err with pterm.
func Print(err error, host string) {
	d := Describe(err, host)
	pterm.Error.Println(d.Summary)
	for _, h := range d.Hints {
		pterm.Println("  • " + h)
	}
	if err != nil {
		msg := err.Error()
		if len(msg) > 100 {
			msg = msg[:100] + "..."
		}
		pterm.Debug.Printfln("Technical details: %s", msg)
	}
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded")
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectionRefusedError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isSSLError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "tls") ||
		strings.Contains(s, "x509") ||
		strings.Contains(s, "certificate") ||
		strings.Contains(s, "handshake")
}

func isServerError(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range []string{"500", "502", "503", "504", "internal server error", "bad gateway", "gateway timeout"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ExtractHostFromURL extracts the hostname from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}
