package element_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/euforicio/pagable/element"
)

func TestRenderNestedTree(t *testing.T) {
	t.Parallel()

	tree := element.Div(
		element.H1("i love chocolate!"),
		element.A("Hello, World!", element.Attrs{"href": "https://example.com", "data_link": "x"}),
		[]element.Node{element.Text("a"), element.Raw("<b>b</b>")},
		nil,
	)

	out, err := element.Render(tree)
	require.NoError(t, err)
	assert.Equal(t,
		`<div><h1>i love chocolate!</h1><a data-link="x" href="https://example.com">Hello, World!</a>a<b>b</b></div>`,
		out)
}

func TestTextIsEscaped(t *testing.T) {
	t.Parallel()

	out, err := element.Render(element.P(`<script>alert("x")</script>`, element.Attrs{"title": `a "quoted" <value>`}))
	require.NoError(t, err)
	assert.Equal(t, `<p title="a &#34;quoted&#34; &lt;value&gt;">&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;</p>`, out)
}

func TestCustomElementsAndVoidTags(t *testing.T) {
	t.Parallel()

	custom := element.New("custom-element", "Hello, World!").Set("data_link", "https://example.com")
	out, err := element.Render(custom)
	require.NoError(t, err)
	assert.Equal(t, `<custom-element data-link="https://example.com">Hello, World!</custom-element>`, out)

	out, err = element.Render(element.Group(element.Br(), element.Input(element.Attrs{"disabled": "", "type": "text"})))
	require.NoError(t, err)
	assert.Equal(t, `<br><input disabled type="text">`, out)
}

func TestInvalidNamesFail(t *testing.T) {
	t.Parallel()

	_, err := element.Render(element.New("bad tag"))
	assert.True(t, errors.Is(err, element.ErrInvalidName))

	_, err = element.Render(element.Div(element.Attrs{`onclick="x"`: "y"}))
	assert.True(t, errors.Is(err, element.ErrInvalidName))

	out, err := element.Render(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGroupAcceptsMixedChildren(t *testing.T) {
	t.Parallel()

	out, err := element.Render(element.Group("hi", 42, []string{"a", "b"}, element.Strong("!")))
	require.NoError(t, err)
	assert.Equal(t, "hi42ab<strong>!</strong>", out)
}

func TestNilElementChildrenAreSkipped(t *testing.T) {
	t.Parallel()

	var missing *element.Element
	var rows []*element.Element
	rows = append(rows, element.Li("a"), nil, element.Li("b"))

	tree := element.Div(missing, element.Ul(rows), []element.Node{missing, element.Text("c")})
	out, err := element.Render(tree)
	require.NoError(t, err)
	assert.Equal(t, `<div><ul><li>a</li><li>b</li></ul>c</div>`, out)

	out, err = element.Render(missing)
	require.NoError(t, err)
	assert.Empty(t, out)
}
