package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
)

// Locator addresses elements matching a CSS selector on the driver's page.
type Locator struct {
	d        *Driver
	selector string
}

// Locator returns a Locator for selector. Nothing is queried until a method
// is called.
func (d *Driver) Locator(selector string) *Locator {
	return &Locator{d: d, selector: selector}
}

// Selector returns the CSS selector.
func (l *Locator) Selector() string {
	return l.selector
}

// wait blocks until the element exists or the query timeout elapses.
func (l *Locator) wait(ctx context.Context) (*rod.Element, error) {
	if err := l.d.checkSettled(); err != nil {
		return nil, err
	}

	qctx, cancel := context.WithTimeout(ctx, l.d.queryTimeout)
	defer cancel()

	el, err := l.d.page.Context(qctx).Element(l.selector)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &QueryTimeoutError{Selector: l.selector, Timeout: l.d.queryTimeout}
		}
		return nil, fmt.Errorf("query %s: %w", l.selector, err)
	}
	return el.Context(ctx), nil
}

// TextContent waits for the element and returns its textContent.
func (l *Locator) TextContent(ctx context.Context) (string, error) {
	el, err := l.wait(ctx)
	if err != nil {
		return "", err
	}
	res, err := el.Eval(`() => this.textContent`)
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", l.selector, err)
	}
	if res.Value.Nil() {
		return "", nil
	}
	return res.Value.Str(), nil
}

// WaitFor blocks until the element exists.
func (l *Locator) WaitFor(ctx context.Context) error {
	_, err := l.wait(ctx)
	return err
}

// Exists reports whether the element is present right now, without waiting.
func (l *Locator) Exists(ctx context.Context) (bool, error) {
	if err := l.d.checkSettled(); err != nil {
		return false, err
	}
	has, _, err := l.d.page.Context(ctx).Has(l.selector)
	if err != nil {
		return false, fmt.Errorf("query %s: %w", l.selector, err)
	}
	return has, nil
}

func (d *Driver) checkSettled() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.state != StateSettled {
		return ErrNotSettled
	}
	return nil
}
