package httpclient

import "fmt"

// ApiError wraps a non-2xx HTTP response.
type ApiError struct {
	Status  int
	Body    string
	Message string
}

func (e *ApiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Body)
}

func (e *ApiError) NotFound() bool     { return e.Status == 404 }
func (e *ApiError) Unauthorized() bool { return e.Status == 401 || e.Status == 403 }
func (e *ApiError) RateLimited() bool  { return e.Status == 429 }
