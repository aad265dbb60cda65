package validation

import (
	"fmt"

	dErrors "apihub/pkg/domain-errors"
)

// MaxBodySize is the maximum accepted request body (256 KB). API link
// requests carry full endpoint lists.
const MaxBodySize = 256 * 1024

const (
	MaxEndpointsPerApi    = 500
	MaxScopesPerEndpoint  = 20
	MaxMembers            = 100
	MaxEgresses           = 50
	MaxScopeLength        = 100
	MaxPathLength         = 2048
	MaxNameLength         = 100
	MaxEmailLength        = 255
	MaxSupportingInfoSize = 4000
)

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}

// CheckEachStringLength validates that each string in a slice does not exceed the maximum length.
func CheckEachStringLength(fieldName string, values []string, max int) error {
	for _, v := range values {
		if len(v) > max {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
		}
	}
	return nil
}
