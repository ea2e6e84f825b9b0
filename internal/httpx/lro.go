package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/LukaszStem/azure-cli/internal/backend"
)

const (
	headerAsyncOperation = "Azure-AsyncOperation"
	headerLocation       = "Location"
)

// Operation tracks a long-running request started with a 201 or 202
// response. It satisfies the poller's Handle contract.
type Operation struct {
	client      *Client
	statusURL   string
	locationURL bool
	resourceURL string
	method      string

	done   bool
	last   []byte
	final  *Response
	failed error
}

// StartOperation wraps the initial response. Responses without a status URL
// are already complete.
func StartOperation(c *Client, method, resourceURL string, initial *Response) *Operation {
	op := &Operation{client: c, method: method, resourceURL: resourceURL, last: initial.Body}
	switch {
	case initial.Header.Get(headerAsyncOperation) != "":
		op.statusURL = initial.Header.Get(headerAsyncOperation)
	case initial.StatusCode == http.StatusAccepted && initial.Header.Get(headerLocation) != "":
		op.statusURL = initial.Header.Get(headerLocation)
		op.locationURL = true
	default:
		op.done = true
		op.final = initial
	}
	return op
}

// IsLongRunning reports whether the initial response requires polling.
func IsLongRunning(initial *Response) bool {
	if initial == nil {
		return false
	}
	if initial.Header.Get(headerAsyncOperation) != "" {
		return true
	}
	return initial.StatusCode == http.StatusAccepted && initial.Header.Get(headerLocation) != ""
}

type asyncStatus struct {
	Status string `json:"status"`
	Error  struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (o *Operation) Done(ctx context.Context) (bool, error) {
	if o.done {
		return true, nil
	}
	resp, err := o.client.Do(ctx, http.MethodGet, o.statusURL, nil, nil)
	if err != nil {
		return false, err
	}
	o.last = resp.Body
	if o.locationURL {
		if resp.StatusCode == http.StatusAccepted {
			return false, nil
		}
		o.done = true
		o.final = resp
		return true, nil
	}

	var status asyncStatus
	if err := resp.Decode(&status); err != nil {
		return false, err
	}
	switch strings.ToLower(status.Status) {
	case "succeeded":
		o.done = true
	case "failed", "canceled", "cancelled":
		o.done = true
		message := status.Error.Message
		if message == "" {
			message = "operation " + strings.ToLower(status.Status)
		}
		o.failed = &backend.Error{StatusCode: resp.StatusCode, Code: status.Error.Code, Message: message, Body: resp.Body}
	}
	return o.done, nil
}

func (o *Operation) LastResponse() []byte { return o.last }

// Result returns the final resource. Deletes and empty completions yield nil.
func (o *Operation) Result(ctx context.Context) (any, error) {
	if o.failed != nil {
		return nil, o.failed
	}
	if o.final == nil && o.method != http.MethodDelete && o.resourceURL != "" {
		resp, err := o.client.Do(ctx, http.MethodGet, o.resourceURL, nil, nil)
		if err != nil {
			return nil, err
		}
		o.final = resp
	}
	if o.final == nil {
		return nil, nil
	}
	return o.final.Value()
}
