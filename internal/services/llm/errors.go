package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mediafactory/internal/services"
)

// ErrContentRejected marks a response the provider refused or filtered on policy grounds.
var ErrContentRejected = errors.New("content rejected by provider")

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, snippet(e.Body))
}

func (e *httpStatusError) transient() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// emptyContentError is a successful response without usable text.
type emptyContentError struct {
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	var b strings.Builder
	b.WriteString("empty content")
	if e.FinishReason != "" {
		fmt.Fprintf(&b, " (finish_reason=%s)", e.FinishReason)
	}
	if e.Refusal != "" {
		fmt.Fprintf(&b, ": refusal: %s", e.Refusal)
	}
	fmt.Fprintf(&b, ": response: %s", e.Snippet)
	return b.String()
}

func (e *emptyContentError) rejected() bool {
	return e.Refusal != "" || e.FinishReason == "content_filter"
}

// StatusCode extracts the HTTP status of a failed provider request, or 0.
func StatusCode(err error) int {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, services.ErrTransient) || errors.Is(err, services.ErrPermanent) ||
		errors.Is(err, services.ErrConfiguration) || errors.Is(err, services.ErrValidation) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "script", "llm request", "provider did not answer in time", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var empty *emptyContentError
	if errors.As(err, &empty) && empty.rejected() {
		return services.Wrap(services.ErrPermanent, "script", "llm request", "provider refused the prompt", errors.Join(ErrContentRejected, err))
	}
	var status *httpStatusError
	if errors.As(err, &status) {
		switch {
		case status.StatusCode == http.StatusUnauthorized || status.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "script", "llm request", "provider rejected credentials", err)
		case status.transient():
			return services.Wrap(services.ErrTransient, "script", "llm request", "provider unavailable", err)
		case status.StatusCode >= http.StatusBadRequest:
			return services.Wrap(services.ErrPermanent, "script", "llm request", "provider rejected the request", err)
		}
	}
	return services.Wrap(services.ErrTransient, "script", "llm request", "request failed", err)
}
