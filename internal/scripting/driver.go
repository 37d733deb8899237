// Package scripting hosts user-supplied JavaScript bot drivers. A script
// defines onTick(view) and returns an action object; the driver translates
// it into a tick input for the speculation loop.
package scripting

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/sensen-game/sensen-core/internal/input"
	"github.com/sensen-game/sensen-core/internal/view"
)

// LogEntry is a single log message emitted by the script.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

const (
	scriptInitTimeout = 2 * time.Second
	scriptCallTimeout = 250 * time.Millisecond
)

// Driver wraps a goja runtime with sandbox restrictions and global
// function injection. A driver serves one participant of one match.
type Driver struct {
	runtime *goja.Runtime
	mu      sync.Mutex

	// Log buffer exposed over the API.
	logs    []LogEntry
	logsMu  sync.Mutex
	maxLogs int

	// Set when the script calls concede(). Own lock: the callback fires
	// while OnTick holds d.mu.
	concedeMu        sync.Mutex
	concedeRequested bool
}

// NewDriver creates a sandboxed goja runtime with global functions
// injected.
func NewDriver() *Driver {
	d := &Driver{
		runtime: goja.New(),
		maxLogs: 500,
	}
	d.injectGlobalFunctions()
	return d
}

// injectGlobalFunctions registers log, concede, and console.log.
func (d *Driver) injectGlobalFunctions() {
	// log(...args) — appends to the log buffer
	d.runtime.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		d.logsMu.Lock()
		if len(d.logs) >= d.maxLogs {
			d.logs = d.logs[1:]
		}
		d.logs = append(d.logs, LogEntry{Time: time.Now(), Message: msg})
		d.logsMu.Unlock()

		return goja.Undefined()
	})

	// console.log — alias for log
	console := d.runtime.NewObject()
	console.Set("log", d.runtime.Get("log"))
	d.runtime.Set("console", console)

	// concede() — signals the host to end the match
	d.runtime.Set("concede", func(call goja.FunctionCall) goja.Value {
		d.concedeMu.Lock()
		d.concedeRequested = true
		d.concedeMu.Unlock()
		return goja.Undefined()
	})

	// Math is already available in goja by default.
	// Block dangerous globals.
	d.runtime.Set("require", goja.Undefined())
	d.runtime.Set("fetch", goja.Undefined())
	d.runtime.Set("XMLHttpRequest", goja.Undefined())
	d.runtime.Set("eval", goja.Undefined())
	d.runtime.Set("Function", goja.Undefined())
}

// Load runs the script source once to register onTick().
func (d *Driver) Load(source string) error {
	return d.runWithTimeout(scriptInitTimeout, func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		if _, err := d.runtime.RunString(source); err != nil {
			return fmt.Errorf("script execution error: %w", err)
		}
		return nil
	})
}

// HasOnTick returns true if the script defined an onTick() function.
func (d *Driver) HasOnTick() bool {
	fn := d.runtime.Get("onTick")
	if fn == nil || goja.IsUndefined(fn) || goja.IsNull(fn) {
		return false
	}
	_, ok := goja.AssertFunction(fn)
	return ok
}

// OnTick calls the user-defined onTick(view) function and translates its
// return value into a tick input. Returning null, undefined or nothing
// means no action this tick.
func (d *Driver) OnTick(p view.Perspective) (input.Intent, error) {
	intent := input.NoOp()
	err := d.runWithTimeout(scriptCallTimeout, func() error {
		d.mu.Lock()
		defer d.mu.Unlock()

		fn := d.runtime.Get("onTick")
		if fn == nil || goja.IsUndefined(fn) || goja.IsNull(fn) {
			return fmt.Errorf("onTick() function is not defined")
		}
		callable, ok := goja.AssertFunction(fn)
		if !ok {
			return fmt.Errorf("onTick is not a function")
		}

		arg, err := d.viewValue(p)
		if err != nil {
			return err
		}
		result, err := callable(goja.Undefined(), arg)
		if err != nil {
			return fmt.Errorf("onTick() error: %w", err)
		}

		it, err := decodeAction(d.runtime, result)
		if err != nil {
			return err
		}
		intent = it
		return nil
	})
	if err != nil {
		return input.NoOp(), err
	}
	return intent, nil
}

// viewValue converts a perspective into plain JS values through its JSON
// form, so scripts see the wire field names and ordinary numbers. Handing
// the struct to goja directly would wrap the named integer types as Go
// values, and view.tick !== 40 for a tick of 40.
func (d *Driver) viewValue(p view.Perspective) (goja.Value, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode view: %w", err)
	}
	var plain map[string]any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, fmt.Errorf("decode view: %w", err)
	}
	return d.runtime.ToValue(plain), nil
}

// decodeAction maps a script return value to an intent. Accepted shapes:
// null/undefined, {action: "draw"} and {action: "play", slot: n}.
func decodeAction(r *goja.Runtime, v goja.Value) (input.Intent, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return input.NoOp(), nil
	}
	obj := v.ToObject(r)
	if obj == nil {
		return input.NoOp(), fmt.Errorf("onTick() returned a non-object value")
	}

	action := obj.Get("action")
	if action == nil || goja.IsUndefined(action) {
		return input.NoOp(), fmt.Errorf("onTick() result has no action field")
	}

	switch name := action.String(); name {
	case "draw":
		return input.Draw(), nil
	case "play":
		slotVal := obj.Get("slot")
		if slotVal == nil || goja.IsUndefined(slotVal) {
			return input.NoOp(), fmt.Errorf("play action has no slot field")
		}
		slot := int(slotVal.ToInteger())
		it := input.Play(slot)
		if _, err := input.Encode(it); err != nil {
			return input.NoOp(), fmt.Errorf("play action slot %d: %w", slot, err)
		}
		return it, nil
	case "noop", "none":
		return input.NoOp(), nil
	default:
		return input.NoOp(), fmt.Errorf("unknown action %q", name)
	}
}

// IsConcedeRequested returns true if concede() was called from the script.
func (d *Driver) IsConcedeRequested() bool {
	d.concedeMu.Lock()
	defer d.concedeMu.Unlock()
	return d.concedeRequested
}

// Logs returns a copy of the current log buffer.
func (d *Driver) Logs() []LogEntry {
	d.logsMu.Lock()
	defer d.logsMu.Unlock()
	out := make([]LogEntry, len(d.logs))
	copy(out, d.logs)
	return out
}

// ClearLogs clears the log buffer.
func (d *Driver) ClearLogs() {
	d.logsMu.Lock()
	defer d.logsMu.Unlock()
	d.logs = d.logs[:0]
}

func (d *Driver) runWithTimeout(timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		// Interrupt a runaway script execution.
		d.runtime.Interrupt("script execution timeout")
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("script timed out: %w", err)
			}
			return fmt.Errorf("script timed out")
		case <-time.After(200 * time.Millisecond):
			return fmt.Errorf("script timed out")
		}
	}
}
