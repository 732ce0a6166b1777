package discord

import (
	"errors"

	"github.com/stemsi/proctor-bot/internal/service"
)

// User-facing replies.
const (
	MsgGuildOnly        = "This command must be used in a server."
	MsgNoCertifications = "No certifications are configured for this server yet."
	MsgInvalidStart     = "Invalid certification selection."
	MsgInvalidAnswer    = "Invalid answer selection."
	MsgCertNotFound     = "Certification not found."
	MsgNoQuestions      = "This certification has no questions yet."
	MsgSessionExpired   = "That session has expired. Please start again."
	MsgNotOwner         = "That session belongs to someone else."
	MsgStaleAnswer      = "That answer is no longer valid."
	MsgRewardFailed     = "Passed, but I could not assign the role. Please contact a server admin."
	MsgInternal         = "Something went wrong. Please try again."
)

// RejectionMessage maps an engine error to the reply shown to the user.
func RejectionMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrCertificationNotFound):
		return MsgCertNotFound
	case errors.Is(err, service.ErrNoQuestions):
		return MsgNoQuestions
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrSessionExpired):
		return MsgSessionExpired
	case errors.Is(err, service.ErrNotSessionOwner):
		return MsgNotOwner
	case errors.Is(err, service.ErrStaleAnswer):
		return MsgStaleAnswer
	default:
		return MsgInternal
	}
}

// isUserError reports whether err is an expected rejection rather than a fault.
func isUserError(err error) bool {
	return RejectionMessage(err) != MsgInternal
}
