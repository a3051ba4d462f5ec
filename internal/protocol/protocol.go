// Package protocol defines the JSON frames exchanged between the pagable
// server and the browser runtime over the WebSocket connection.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind is the numeric "type" field of every frame.
type Kind float64

// Frame kinds.
const (
	KindRender      Kind = 1
	KindScript      Kind = 2
	KindScriptError Kind = 2.1
)

// ContentType tells the browser what produced the content of a render frame.
type ContentType string

// Content types carried in the "ctyp" field.
const (
	ContentMarkdown  ContentType = "md"
	ContentComponent ContentType = "component"
)

// Hello is the first frame a browser sends after connecting.
type Hello struct {
	Path string `json:"path"`
}

// Render replaces the page content in the browser.
type Render struct {
	Type        Kind           `json:"type"`
	Meta        map[string]any `json:"meta"`
	Initial     bool           `json:"initial"`
	ContentType ContentType    `json:"ctyp"`
	Content     string         `json:"ctnt"`
	Requires    []string       `json:"requires,omitempty"`
}

// Script asks the browser to evaluate a function body. The browser echoes
// ID in its reply.
type Script struct {
	Type    Kind   `json:"type"`
	ID      uint64 `json:"id"`
	Content string `json:"ctnt"`
}

// Reply is a browser answer to a Script frame: either a result (KindScript)
// or a thrown error (KindScriptError).
type Reply struct {
	Type    Kind            `json:"type"`
	ID      uint64          `json:"id"`
	Content json.RawMessage `json:"ctnt,omitempty"`
	Message string          `json:"mesg,omitempty"`
	Name    string          `json:"name,omitempty"`
	Cause   json.RawMessage `json:"caus,omitempty"`
}

// Err returns the reply as a *ScriptError when the browser reported a failure.
func (r Reply) Err() error {
	if r.Type != KindScriptError {
		return nil
	}
	return &ScriptError{
		Kind:    r.Type,
		Name:    r.Name,
		Message: r.Message,
		Cause:   causeString(r.Cause),
	}
}

// ScriptError is an exception raised by a script evaluated in the browser.
type ScriptError struct {
	Kind    Kind
	Name    string
	Message string
	Cause   string
}

func (e *ScriptError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "frontend error (%v)", float64(e.Kind))
	name := e.Name
	if name == "" {
		name = "Error"
	}
	fmt.Fprintf(&b, ": %s: %s", name, e.Message)
	if e.Cause != "" {
		fmt.Fprintf(&b, " (cause: %s)", e.Cause)
	}
	return b.String()
}

// ErrInvalidFrame wraps every decoding or schema failure.
var ErrInvalidFrame = errors.New("invalid frame")

const helloSchema = `{
	"type": "object",
	"required": ["path"],
	"properties": {
		"path": {"type": "string", "minLength": 1, "maxLength": 2048}
	}
}`

const replySchema = `{
	"type": "object",
	"required": ["type", "id"],
	"properties": {
		"type": {"type": "number", "minimum": 2, "maximum": 3},
		"id": {"type": "integer", "minimum": 1},
		"mesg": {"type": ["string", "null"]},
		"name": {"type": ["string", "null"]}
	}
}`

var (
	helloValidator = jsonschema.MustCompileString("pagable://hello.json", helloSchema)
	replyValidator = jsonschema.MustCompileString("pagable://reply.json", replySchema)
)

// DecodeHello parses and validates the opening frame.
func DecodeHello(data []byte) (Hello, error) {
	var hello Hello
	if err := decode(data, helloValidator, &hello); err != nil {
		return Hello{}, err
	}
	return hello, nil
}

// DecodeReply parses and validates a script result or error frame.
func DecodeReply(data []byte) (Reply, error) {
	var raw struct {
		Type    Kind            `json:"type"`
		ID      uint64          `json:"id"`
		Content json.RawMessage `json:"ctnt"`
		Message *string         `json:"mesg"`
		Name    *string         `json:"name"`
		Cause   json.RawMessage `json:"caus"`
	}
	if err := decode(data, replyValidator, &raw); err != nil {
		return Reply{}, err
	}
	if raw.Type != KindScript && raw.Type != KindScriptError {
		return Reply{}, fmt.Errorf("%w: unexpected reply type %v", ErrInvalidFrame, float64(raw.Type))
	}
	reply := Reply{Type: raw.Type, ID: raw.ID, Content: raw.Content, Cause: raw.Cause}
	if raw.Message != nil {
		reply.Message = *raw.Message
	}
	if raw.Name != nil {
		reply.Name = *raw.Name
	}
	if len(reply.Content) == 0 {
		reply.Content = json.RawMessage("null")
	}
	return reply, nil
}

func decode(data []byte, schema *jsonschema.Schema, dst any) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return nil
}

// NewRender builds a render frame. A nil meta is sent as an empty object.
func NewRender(ctyp ContentType, content string, meta map[string]any, requires []string, initial bool) Render {
	if meta == nil {
		meta = map[string]any{}
	}
	return Render{
		Type:        KindRender,
		Meta:        meta,
		Initial:     initial,
		ContentType: ctyp,
		Content:     content,
		Requires:    requires,
	}
}

// NewScript builds a script frame answered by a reply carrying id.
func NewScript(id uint64, body string) Script {
	return Script{Type: KindScript, ID: id, Content: body}
}

func causeString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
