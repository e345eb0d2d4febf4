package driver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// RouteHandler handles one intercepted request. If it returns without
// calling Continue, Abort or Fulfill the request continues unchanged; if it
// returns an error the request is failed.
type RouteHandler func(ctx context.Context, req *Request) error

// Request is an intercepted network request paused in the browser.
type Request struct {
	h *rod.Hijack

	mu      sync.Mutex
	handled bool
}

// URL returns the request URL.
func (r *Request) URL() *url.URL {
	return r.h.Request.URL()
}

// Method returns the HTTP method.
func (r *Request) Method() string {
	return r.h.Request.Method()
}

// ResourceType returns the kind of resource requested (Document, Fetch, ...).
func (r *Request) ResourceType() proto.NetworkResourceType {
	return r.h.Request.Type()
}

// Handled reports whether the request has been resolved.
func (r *Request) Handled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handled
}

func (r *Request) resolve() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handled {
		return false
	}
	r.handled = true
	return true
}

// Continue sends the request on to the network unchanged.
func (r *Request) Continue() {
	if r.resolve() {
		r.h.ContinueRequest(&proto.FetchContinueRequest{})
	}
}

// Abort fails the request with reason.
func (r *Request) Abort(reason proto.NetworkErrorReason) {
	if r.resolve() {
		r.h.Response.Fail(reason)
	}
}

// Fulfill answers the request without touching the network.
func (r *Request) Fulfill(status int, contentType string, body []byte) {
	if r.resolve() {
		r.h.Response.Payload().ResponseCode = status
		r.h.Response.SetHeader("Content-Type", contentType)
		r.h.Response.SetBody(body)
	}
}

// Delay returns a handler that holds matching requests for d, then
// continues them. It simulates a slow network.
func Delay(d time.Duration) RouteHandler {
	return func(ctx context.Context, req *Request) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			req.Continue()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// AbortWith returns a handler that fails matching requests.
func AbortWith(reason proto.NetworkErrorReason) RouteHandler {
	return func(_ context.Context, req *Request) error {
		req.Abort(reason)
		return nil
	}
}

// Interception is one registered URL pattern and its handler.
type Interception struct {
	d       *Driver
	pattern *regexp.Regexp
	handler RouteHandler

	mu      sync.Mutex
	matched int
}

// Pattern returns the URL pattern.
func (i *Interception) Pattern() *regexp.Regexp {
	return i.pattern
}

// Matched returns how many requests the interception has handled.
func (i *Interception) Matched() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.matched
}

// Stop removes the interception. Requests matching it continue untouched
// from now on.
func (i *Interception) Stop() {
	d := i.d
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, other := range d.interceptions {
		if other == i {
			d.interceptions = append(d.interceptions[:k], d.interceptions[k+1:]...)
			return
		}
	}
}

// Intercept routes every request of this page whose URL matches pattern
// through handler. When several interceptions match, the most recently
// added wins. Interceptions are page-scoped and end with Close.
func (d *Driver) Intercept(pattern *regexp.Regexp, handler RouteHandler) (*Interception, error) {
	if pattern == nil || handler == nil {
		return nil, errors.New("intercept: pattern and handler are required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if d.router == nil {
		router := d.page.HijackRequests()
		if err := router.Add("*", "", d.hijack); err != nil {
			return nil, fmt.Errorf("intercept: %w", err)
		}
		go router.Run()
		d.router = router
	}

	i := &Interception{d: d, pattern: pattern, handler: handler}
	d.interceptions = append(d.interceptions, i)
	return i, nil
}

func (d *Driver) lookupInterception(u string) *Interception {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k := len(d.interceptions) - 1; k >= 0; k-- {
		if d.interceptions[k].pattern.MatchString(u) {
			return d.interceptions[k]
		}
	}
	return nil
}

func (d *Driver) hijack(h *rod.Hijack) {
	u := h.Request.URL().String()
	req := &Request{h: h}

	i := d.lookupInterception(u)
	if i == nil {
		req.Continue()
		return
	}

	i.mu.Lock()
	i.matched++
	i.mu.Unlock()

	d.log.Debugf("intercept %s %s (%s)", req.Method(), u, req.ResourceType())
	if err := i.handler(d.ctx, req); err != nil {
		d.log.Warnf("intercept %s %s: %v", req.Method(), u, err)
		req.Abort(proto.NetworkErrorReasonFailed)
		return
	}
	if !req.Handled() {
		req.Continue()
	}
}
