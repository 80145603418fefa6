package aws

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// isAWSDuplicate reports whether err is a smithy API error whose code
// names an idempotent find_or_create race: the
// resource already exists under a name or key this call itself would
// have created.
func isAWSDuplicate(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return strings.Contains(code, "Duplicate") || strings.Contains(code, "AlreadyExists") || strings.Contains(code, "InUse")
}
