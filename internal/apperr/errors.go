// Package apperr defines the engine's closed error taxonomy. Every error
// that crosses a component boundary is one of these seven kinds, wrapped
// with fmt.Errorf("%w", ...) so callers can errors.As/errors.Is through
// the chain down to the underlying cause.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError signals a misconfiguration discovered at startup or reload.
type ConfigError struct{ Reason string }

func (e *ConfigError) Error() string { return fmt.Sprintf("config error: %s", e.Reason) }

// AuthError signals a venue rejected credentials or a signed request.
type AuthError struct{ Reason string }

func (e *AuthError) Error() string { return fmt.Sprintf("auth error: %s", e.Reason) }

// TransportError signals a network-level failure talking to a venue:
// timeouts, connection resets, DNS failures. These are retryable and
// trip the venue's circuit breaker after repeated occurrences.
type TransportError struct{ Reason string }

func (e *TransportError) Error() string { return fmt.Sprintf("transport error: %s", e.Reason) }

// ProtocolError signals the venue responded but the payload violated the
// expected wire contract (malformed JSON, unexpected schema).
type ProtocolError struct{ Reason string }

func (e *ProtocolError) Error() string { return fmt.Sprintf("protocol error: %s", e.Reason) }

// RiskRejectionError signals the risk manager declined to allow an order.
// Not retryable: the caller must change the order, not resend it.
type RiskRejectionError struct{ Reason string }

func (e *RiskRejectionError) Error() string { return fmt.Sprintf("risk rejection: %s", e.Reason) }

// ExecutionError signals a venue accepted an order but execution could
// not be completed or verified (e.g. a leg could not be confirmed filled
// within its timeout).
type ExecutionError struct{ Reason string }

func (e *ExecutionError) Error() string { return fmt.Sprintf("execution error: %s", e.Reason) }

// InternalError signals a defect in the engine itself rather than an
// external condition.
type InternalError struct{ Reason string }

func (e *InternalError) Error() string { return fmt.Sprintf("internal error: %s", e.Reason) }

// Classify maps an arbitrary error to one of the taxonomy's string tags,
// falling back to string matching for errors that did not originate as a
// typed apperr value (e.g. raw errors returned by a venue client).
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch e.(type) {
		case *ConfigError:
			return "config"
		case *AuthError:
			return "auth"
		case *TransportError:
			return "transport"
		case *ProtocolError:
			return "protocol"
		case *RiskRejectionError:
			return "risk_rejection"
		case *ExecutionError:
			return "execution"
		case *InternalError:
			return "internal"
		}
	}
	return classifyByMessage(err.Error())
}

func classifyByMessage(msg string) string {
	msg = strings.ToLower(msg)
	for _, probe := range []struct {
		substr string
		tag    string
	}{
		{"timeout", "transport"},
		{"connection", "transport"},
		{"dial", "transport"},
		{"eof", "transport"},
		{"unauthorized", "auth"},
		{"forbidden", "auth"},
		{"invalid signature", "auth"},
		{"insufficient", "risk_rejection"},
		{"unmarshal", "protocol"},
		{"malformed", "protocol"},
	} {
		if strings.Contains(msg, probe.substr) {
			return probe.tag
		}
	}
	return "unknown"
}
