package openstack

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gammadia/freetier/acquirer"
	"github.com/gophercloud/gophercloud"
)

const (
	codeLimitExceeded   = "LimitExceeded"
	codeOutOfCapacity   = "OutOfCapacity"
	codeTooManyRequests = "TooManyRequests"
	codeBadGateway      = "BadGateway"
	codeInternalError   = "InternalError"
	codeBuildFailed     = "BuildFailed"
)

// translate maps a gophercloud error to a provider error. Errors without an
// HTTP status are returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var statusErr gophercloud.StatusCodeError
	if !errors.As(err, &statusErr) {
		return err
	}

	status := statusErr.GetStatusCode()
	message := err.Error()

	var code string
	switch {
	case (status == http.StatusForbidden || status == http.StatusRequestEntityTooLarge) && quotaExceeded(message):
		code = codeLimitExceeded
	case status == http.StatusTooManyRequests:
		code = codeTooManyRequests
	case status == http.StatusBadGateway:
		code = codeBadGateway
	case status == http.StatusInternalServerError:
		code = codeInternalError
	}

	return &acquirer.ProviderError{Status: status, Code: code, Message: message, Err: err}
}

func quotaExceeded(message string) bool {
	message = strings.ToLower(message)
	return strings.Contains(message, "quota exceeded") || strings.Contains(message, "quota_exceeded")
}

// buildFault reports a server that went to ERROR while building. Nova
// reports scheduling failures as "No valid host was found".
func buildFault(fault string) error {
	code := codeBuildFailed
	if strings.Contains(strings.ToLower(fault), "no valid host") {
		code = codeOutOfCapacity
	}
	return &acquirer.ProviderError{Status: http.StatusInternalServerError, Code: code, Message: fault}
}
