// Package messaging defines the transport abstraction between the
// interview engine and WhatsApp, plus the dispatcher that feeds inbound
// messages to the engine one at a time per respondent.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/epimex/screenbot/internal/models"
)

const (
	// DefaultChannelBufferSize is the buffer size for receipt and
	// response channels.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds non-blocking channel sends; events
	// are dropped rather than blocking the transport.
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when operations are attempted on a
// stopped service.
var ErrServiceStopped = errors.New("messaging service stopped")

// phoneNumberRegex strips everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`\D`)

// Service is a pluggable message transport. Delivery guarantees belong to
// the transport; the interview engine treats sends as fire-and-forget.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates a recipient identifier
	// and returns its canonical form.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins background processing, e.g. event polling.
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Receipts returns a channel of delivery events.
	Receipts() <-chan models.Receipt

	// Responses returns a channel of incoming respondent messages.
	Responses() <-chan models.Response
}

// canonicalizePhone validates and canonicalizes a phone number to bare
// digits. Both transports share the same recipient rules.
func canonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	if recipient != canonical {
		slog.Debug("Canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}
