package mail

import (
	"fmt"
	"strings"
	"time"
)

// MFACodeMessage builds the one-time verification code email dispatched when a
// login requires multi-factor confirmation.
func MFACodeMessage(to, displayName, code string, expiry time.Duration) Message {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = "there"
	}

	minutes := int(expiry.Minutes())
	if minutes <= 0 {
		minutes = 10
	}

	body := fmt.Sprintf(
		"Hi %s,\n\nYour BarberHub verification code is:\n\n    %s\n\nThe code expires in %d minutes and can only be used once.\nIf you did not try to sign in, you can ignore this message.\n",
		name, code, minutes,
	)

	return Message{
		To:      []string{to},
		Subject: "Your BarberHub verification code",
		Body:    body,
	}
}
