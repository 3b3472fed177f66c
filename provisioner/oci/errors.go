package oci

import (
	"errors"

	"github.com/gammadia/freetier/acquirer"
	"github.com/oracle/oci-go-sdk/v65/common"
)

// translate maps SDK service errors to provider errors. Client side errors
// (configuration, signing, transport) are returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var serviceErr common.ServiceError
	if !errors.As(err, &serviceErr) {
		return err
	}

	return &acquirer.ProviderError{
		Status:  serviceErr.GetHTTPStatusCode(),
		Code:    serviceErr.GetCode(),
		Message: serviceErr.GetMessage(),
		Err:     err,
	}
}
