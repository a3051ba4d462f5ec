package static

import (
	"bytes"
	"testing"
)

func TestAppJSReplacesRoute(t *testing.T) {
	js := AppJS("/__live__")
	if bytes.Contains(js, []byte(wsPlaceholder)) {
		t.Fatalf("placeholder left in runtime")
	}
	if !bytes.Contains(js, []byte(`"/__live__"`)) {
		t.Fatalf("expected ws route in runtime")
	}
}

func TestIndexHTMLLoadsRuntime(t *testing.T) {
	html := IndexHTML()
	for _, want := range []string{`id="root"`, `src="/app.js"`, `id="water-stylesheet"`} {
		if !bytes.Contains(html, []byte(want)) {
			t.Fatalf("expected %s in index.html", want)
		}
	}
}
