// Package discord adapts the exam engine and guild sync to the Discord gateway.
package discord

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Button custom id prefixes. Messages already posted carry these ids, so the
// format must not change.
const (
	StartPrefix  = "cert_start:"
	AnswerPrefix = "cert_answer:"
)

var ErrMalformedID = errors.New("malformed custom id")

func StartID(certificationID uuid.UUID) string {
	return StartPrefix + certificationID.String()
}

func AnswerID(sessionID, answerID uuid.UUID) string {
	return AnswerPrefix + sessionID.String() + ":" + answerID.String()
}

// IsStart reports whether customID is a start button, ignoring case.
func IsStart(customID string) bool {
	return hasPrefixFold(customID, StartPrefix)
}

// IsAnswer reports whether customID is an answer button, ignoring case.
func IsAnswer(customID string) bool {
	return hasPrefixFold(customID, AnswerPrefix)
}

// ParseStart extracts the certification id from a start button id.
func ParseStart(customID string) (uuid.UUID, error) {
	if !IsStart(customID) {
		return uuid.Nil, ErrMalformedID
	}
	id, err := uuid.Parse(customID[len(StartPrefix):])
	if err != nil {
		return uuid.Nil, ErrMalformedID
	}
	return id, nil
}

// ParseAnswer extracts the session and answer ids from an answer button id.
func ParseAnswer(customID string) (sessionID, answerID uuid.UUID, err error) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 || !strings.EqualFold(parts[0], strings.TrimSuffix(AnswerPrefix, ":")) {
		return uuid.Nil, uuid.Nil, ErrMalformedID
	}
	if sessionID, err = uuid.Parse(parts[1]); err != nil {
		return uuid.Nil, uuid.Nil, ErrMalformedID
	}
	if answerID, err = uuid.Parse(parts[2]); err != nil {
		return uuid.Nil, uuid.Nil, ErrMalformedID
	}
	return sessionID, answerID, nil
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
