package httpapi

import (
	"fmt"
	"strings"
	"time"
)

const msgMissingInput = "Usernames and startDate are required."

// badRequestError is reported to the client verbatim with status 400.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func errBadRequest(msg string) error {
	return &badRequestError{msg: msg}
}

// ValidateStatsRequest checks the /github-stats body.
func ValidateStatsRequest(req statsRequest) error {
	if len(req.Usernames) == 0 || req.StartDate == "" {
		return errBadRequest(msgMissingInput)
	}
	for i, u := range req.Usernames {
		if strings.TrimSpace(u) == "" {
			return errBadRequest(fmt.Sprintf("usernames[%d] must not be empty", i))
		}
		if strings.ContainsAny(u, " \t\n") {
			return errBadRequest(fmt.Sprintf("usernames[%d] must not contain whitespace", i))
		}
	}
	if !isDateLike(req.StartDate) {
		return errBadRequest("startDate must be YYYY-MM-DD or an RFC 3339 timestamp")
	}
	return nil
}

func isDateLike(s string) bool {
	if _, err := time.Parse(time.DateOnly, s); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}
