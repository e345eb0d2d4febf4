package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// ConsoleMessage is one console call observed on the page. Args holds the
// JSON value of every argument, in order.
type ConsoleMessage struct {
	Type string
	Args []any
	Time time.Time

	// Err is set when an argument could not be resolved to a JSON value.
	// The unresolved argument is recorded as nil.
	Err error
}

// Status returns the "status" field of the first argument when it is a
// JSON object carrying a numeric status, as error responses do.
func (m ConsoleMessage) Status() (int, bool) {
	if len(m.Args) == 0 {
		return 0, false
	}
	obj, ok := m.Args[0].(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := obj["status"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// Text renders the arguments roughly the way a browser console would.
func (m ConsoleMessage) Text() string {
	parts := make([]string, 0, len(m.Args))
	for _, a := range m.Args {
		if s, ok := a.(string); ok {
			parts = append(parts, s)
			continue
		}
		b, err := json.Marshal(a)
		if err != nil {
			parts = append(parts, fmt.Sprint(a))
			continue
		}
		parts = append(parts, string(b))
	}
	return strings.Join(parts, " ")
}

// ConsoleCapture accumulates console messages for one test. Close it when
// the test ends; Driver.Close closes any capture still open.
type ConsoleCapture struct {
	d      *Driver
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	msgs    []ConsoleMessage
	changed chan struct{}

	closeOnce sync.Once
}

// CaptureConsole starts recording console events. Messages whose first
// argument carries a status >= 400 are logged as warnings; they never fail
// anything by themselves.
func (d *Driver) CaptureConsole(ctx context.Context) (*ConsoleCapture, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(d.ctx, cancel)

	page := d.page.Context(ctx)
	if err := (proto.RuntimeEnable{}).Call(page); err != nil {
		stop()
		cancel()
		return nil, fmt.Errorf("enable runtime events: %w", err)
	}

	c := &ConsoleCapture{
		d:       d,
		cancel:  cancel,
		done:    make(chan struct{}),
		changed: make(chan struct{}),
	}

	wait := page.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		c.add(resolveConsole(page, e))
	})
	go func() {
		defer close(c.done)
		defer stop()
		wait()
	}()

	d.mu.Lock()
	d.captures = append(d.captures, c)
	d.mu.Unlock()
	return c, nil
}

func resolveConsole(page *rod.Page, e *proto.RuntimeConsoleAPICalled) ConsoleMessage {
	msg := ConsoleMessage{
		Type: string(e.Type),
		Args: make([]any, len(e.Args)),
		Time: time.Now(),
	}
	for i, arg := range e.Args {
		v, err := page.ObjectToJSON(arg)
		if err != nil {
			if msg.Err == nil {
				msg.Err = fmt.Errorf("resolve console argument %d: %w", i, err)
			}
			continue
		}
		msg.Args[i] = consoleValue(v)
	}
	return msg
}

// consoleValue converts a resolved argument into plain Go values. Numbers
// become float64, as encoding/json would decode them.
func consoleValue(v gson.JSON) any {
	return normalizeJSON(v.Val())
}

func normalizeJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeJSON(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeJSON(e)
		}
		return out
	}
	return v
}

func (c *ConsoleCapture) add(m ConsoleMessage) {
	if status, ok := m.Status(); ok && status >= 400 {
		c.d.log.Warnf("console.%s (status %d): %s", m.Type, status, m.Text())
	} else {
		c.d.log.Debugf("console.%s: %s", m.Type, m.Text())
	}

	c.mu.Lock()
	c.msgs = append(c.msgs, m)
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}

// Messages returns a snapshot of the messages captured so far.
func (c *ConsoleCapture) Messages() []ConsoleMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ConsoleMessage(nil), c.msgs...)
}

// Errors returns the captured messages whose first argument has a status
// of 400 or above.
func (c *ConsoleCapture) Errors() []ConsoleMessage {
	var out []ConsoleMessage
	for _, m := range c.Messages() {
		if status, ok := m.Status(); ok && status >= 400 {
			out = append(out, m)
		}
	}
	return out
}

// WaitFor blocks until a captured message satisfies match and returns it.
func (c *ConsoleCapture) WaitFor(ctx context.Context, match func(ConsoleMessage) bool) (ConsoleMessage, error) {
	seen := 0
	for {
		c.mu.Lock()
		msgs := c.msgs[seen:]
		changed := c.changed
		seen = len(c.msgs)
		c.mu.Unlock()

		for _, m := range msgs {
			if match(m) {
				return m, nil
			}
		}

		select {
		case <-changed:
		case <-c.done:
			return ConsoleMessage{}, fmt.Errorf("console capture closed: %w", ErrClosed)
		case <-ctx.Done():
			return ConsoleMessage{}, ctx.Err()
		}
	}
}

// Close stops the listener and waits for it to exit. Captured messages stay
// readable.
func (c *ConsoleCapture) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done
	})
}
