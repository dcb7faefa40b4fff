package httpx

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
)

type StatusError struct {
	Message       string
	ExpectedCodes []int
	StatusCode    int
}

func (e *StatusError) Error() string {
	expectedCodeStrs := []string{}
	for _, expected := range e.ExpectedCodes {
		expectedCodeStrs = append(expectedCodeStrs, fmt.Sprintf("%d %s", expected, http.StatusText(expected)))
	}
	msg := fmt.Sprintf("expected one of the following statuses [%s], but received %d %s", strings.Join(expectedCodeStrs, ", "), e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// CheckResponseStatus returns a *StatusError when the response status is not
// one of the expected codes. The body is consumed and closed in that case.
func CheckResponseStatus(resp *http.Response, expectedCodes ...int) error {
	if len(expectedCodes) == 0 {
		return errors.New("expected codes cannot be empty")
	}
	if slices.Contains(expectedCodes, resp.StatusCode) {
		return nil
	}
	message, messageErr := getErrorMessage(resp)
	statusErr := &StatusError{
		Message:       message,
		ExpectedCodes: expectedCodes,
		StatusCode:    resp.StatusCode,
	}
	return errors.Join(statusErr, messageErr)
}

func getErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return "", nil
	}
	contentTypes := []string{
		ContentTypeText,
		ContentTypeHTML,
		ContentTypeJSON,
		ContentTypeXML,
	}
	mediaType, _, _ := strings.Cut(resp.Header.Get(HeaderContentType), ";")
	if !slices.Contains(contentTypes, strings.TrimSpace(mediaType)) {
		return "", nil
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxReadBytes))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
