// Package transport defines the transport-neutral request and response
// shapes protocol messages travel in, and the narrow interfaces the
// channel consumes to move them. It performs no parsing or validation;
// that is the channel's job.
package transport

import (
	"context"
	"net/http"
	"net/url"
)

// Request is a transport-neutral view of one inbound request. How it was
// read off the wire (HTTP listener, in-process link) is the host's
// concern; the channel only inspects its fields.
type Request struct {
	// Method is the request method ("GET", "POST")
	Method string

	// URL is the request target; query parameters may carry message fields
	URL *url.URL

	// Form holds body-encoded message fields (POST)
	Form url.Values

	// Header carries transport headers, unused by the protocol core
	Header http.Header
}

// NewRequest builds a request from a raw URL and optional form fields.
// It is a convenience for hosts and tests; rawURL must parse.
func NewRequest(method, rawURL string, form url.Values) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return &Request{
		Method: method,
		URL:    u,
		Form:   form,
		Header: http.Header{},
	}, nil
}

// Values merges query and form fields into one view, with form fields
// taking precedence. Protocol decoding reads from this merged view.
func (r *Request) Values() url.Values {
	merged := url.Values{}
	if r.URL != nil {
		for k, vs := range r.URL.Query() {
			merged[k] = vs
		}
	}
	for k, vs := range r.Form {
		merged[k] = vs
	}
	return merged
}

// Response is a transport-neutral outgoing response. Exactly one of Body
// and Redirect is populated: direct responses carry fields in the body,
// indirect responses carry them in the redirect target's query.
type Response struct {
	// Status is the suggested transport status code
	Status int

	// Header carries transport headers
	Header http.Header

	// Body holds the encoded fields of a direct response
	Body url.Values

	// Redirect is the destination of an indirect response, fields encoded
	// in its query
	Redirect *url.URL
}

// Transport delivers encoded responses toward the counterpart endpoint.
// Implementations must perform exactly one write per Deliver call; the
// channel never retries.
type Transport interface {
	Deliver(ctx context.Context, resp *Response) error
}

// RequestSource supplies the current inbound request when a caller does
// not pass one explicitly. Hosts typically back this with whatever
// request object their listener is processing.
type RequestSource interface {
	CurrentRequest(ctx context.Context) (*Request, error)
}
