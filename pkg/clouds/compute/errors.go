package compute

import (
	"strings"

	"github.com/deployctl/deployctl/pkg/httpclient"
)

// conflictMarkers lists the substrings Hetzner/Scaleway/AWS use in a
// 409-shaped error body to say "this already exists under a different
// handle I own." find_or_create_X swallows these; any other conflict
// is re-raised.
var conflictMarkers = []string{
	"already_added",
	"target_already_defined",
	"uniqueness",
	"already exists",
	"AlreadyExists",
	"Duplicate",
}

// IsIdempotentConflict reports whether err represents a find_or_create
// race that should be treated as success rather than failure.
func IsIdempotentConflict(err error) bool {
	if err == nil {
		return false
	}
	apiErr, ok := err.(*httpclient.ApiError)
	if !ok {
		return false
	}
	if apiErr.Status != 409 && apiErr.Status != 422 {
		return false
	}
	haystack := apiErr.Body + " " + apiErr.Message
	for _, marker := range conflictMarkers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}
