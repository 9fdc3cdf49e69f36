package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
)

// maxErrorBody bounds how much of an error response ends up in an APIError.
const maxErrorBody = 512

// DecodeResponse decodes a JSON response into the target structure. Any
// status other than 200 is returned as an *errors.APIError.
func DecodeResponse(resp *http.Response, service string, target any) error {
	defer resp.Body.Close() //nolint:errcheck // read errors are reported instead

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return apiError(resp, service, body)
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}
	return nil
}

// CheckResponse drains and closes the body and returns an *errors.APIError
// unless the status is 200.
func CheckResponse(resp *http.Response, service string) error {
	return DecodeResponse(resp, service, nil)
}

func apiError(resp *http.Response, service string, body []byte) *errors.APIError {
	msg := strings.TrimSpace(string(body))
	msg = truncate(msg, maxErrorBody)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	endpoint := ""
	if resp.Request != nil && resp.Request.URL != nil {
		endpoint = resp.Request.Method + " " + resp.Request.URL.Path
	}
	return &errors.APIError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Message:    msg,
		Endpoint:   endpoint,
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
