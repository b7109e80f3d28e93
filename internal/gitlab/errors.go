// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package gitlab

import (
	"errors"
	"fmt"
)

// Kind classifies a client error for the orchestrator's propagation policy.
type Kind int

const (
	// KindNetwork: no response was received (transport failure, timeout,
	// open circuit breaker).
	KindNetwork Kind = iota + 1
	// KindUpstream: a non-2xx response with a structured body.
	KindUpstream
	// KindAuth: 401 or 403, surfaced distinctly so callers can suppress
	// polling until re-authentication.
	KindAuth
	// KindMalformed: the response body was not the expected JSON shape.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUpstream:
		return "upstream"
	case KindAuth:
		return "auth"
	case KindMalformed:
		return "malformed"
	}
	return "unknown"
}

// Error is the normalized error carried by every failed client call.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("gitlab %s: %s error: status %d: %s", e.Op, e.Kind, e.Status, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("gitlab %s: %s error: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("gitlab %s: %s error", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a client error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}

// IsAuth reports whether err is an authentication/authorization failure.
func IsAuth(err error) bool { return IsKind(err, KindAuth) }

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool { return IsKind(err, KindNetwork) }

// IsMalformed reports whether err is a malformed-payload failure.
func IsMalformed(err error) bool { return IsKind(err, KindMalformed) }
