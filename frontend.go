package pagable

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Script evaluates JavaScript in the browser of a component's session.
type Script struct {
	c *Component
}

// NewScript returns a script runner for c.
func NewScript(c *Component) Script { return Script{c: c} }

// Run evaluates body as a function body and returns the JSON encoded value
// it returns. Promises are awaited.
//
//	title, err := pagable.NewScript(c).Run(ctx, "return document.title")
func (s Script) Run(ctx context.Context, body string) (json.RawMessage, error) {
	if s.c == nil {
		return nil, ErrNoSession
	}
	return s.c.AddScripting(ctx, body)
}

// LocalStorage reads and writes window.localStorage in the browser.
type LocalStorage struct {
	script Script
}

// NewLocalStorage returns the local storage of c's browser.
func NewLocalStorage(c *Component) LocalStorage {
	return LocalStorage{script: NewScript(c)}
}

// Clear removes every item.
func (l LocalStorage) Clear(ctx context.Context) error {
	_, err := l.script.Run(ctx, "return window.localStorage.clear()")
	return err
}

// SetItem stores value under key. Strings are stored as they are; any other
// value is stored as JSON.
func (l LocalStorage) SetItem(ctx context.Context, key string, value any) error {
	data, ok := value.(string)
	if !ok {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode local storage item %q: %w", key, err)
		}
		data = string(encoded)
	}
	_, err := l.script.Run(ctx, "return window.localStorage.setItem("+jsString(key)+", "+jsString(data)+")")
	return err
}

// GetItem returns the item stored under key, decoded from JSON when it is
// valid JSON and as the raw string otherwise. Missing items are nil.
func (l LocalStorage) GetItem(ctx context.Context, key string) (any, error) {
	raw, err := l.script.Run(ctx, "return window.localStorage.getItem("+jsString(key)+")")
	if err != nil {
		return nil, err
	}
	var stored *string
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode local storage item %q: %w", key, err)
	}
	if stored == nil {
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(*stored), &decoded); err == nil {
		return decoded, nil
	}
	return *stored, nil
}

// Throw raises an Error with text in the browser.
func Throw(ctx context.Context, c *Component, text string) error {
	_, err := NewScript(c).Run(ctx, "throw new Error("+jsString(text)+")")
	return err
}

// Alert shows the items, formatted with fmt.Sprint, in a browser alert.
func Alert(ctx context.Context, c *Component, items ...any) error {
	args := make([]string, len(items))
	for i, item := range items {
		args[i] = jsString(fmt.Sprint(item))
	}
	_, err := NewScript(c).Run(ctx, "window.alert("+strings.Join(args, ", ")+")")
	return err
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
