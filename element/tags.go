package element

// Tag helpers. Each accepts the same children as New.

func A(children ...any) *Element          { return New("a", children...) }
func Article(children ...any) *Element    { return New("article", children...) }
func B(children ...any) *Element          { return New("b", children...) }
func Br(children ...any) *Element         { return New("br", children...) }
func Button(children ...any) *Element     { return New("button", children...) }
func Code(children ...any) *Element       { return New("code", children...) }
func Details(children ...any) *Element    { return New("details", children...) }
func Div(children ...any) *Element        { return New("div", children...) }
func Em(children ...any) *Element         { return New("em", children...) }
func Footer(children ...any) *Element     { return New("footer", children...) }
func Form(children ...any) *Element       { return New("form", children...) }
func H1(children ...any) *Element         { return New("h1", children...) }
func H2(children ...any) *Element         { return New("h2", children...) }
func H3(children ...any) *Element         { return New("h3", children...) }
func H4(children ...any) *Element         { return New("h4", children...) }
func Header(children ...any) *Element     { return New("header", children...) }
func Hr(children ...any) *Element         { return New("hr", children...) }
func I(children ...any) *Element          { return New("i", children...) }
func Img(children ...any) *Element        { return New("img", children...) }
func Input(children ...any) *Element      { return New("input", children...) }
func Label(children ...any) *Element      { return New("label", children...) }
func Li(children ...any) *Element         { return New("li", children...) }
func Main(children ...any) *Element       { return New("main", children...) }
func Nav(children ...any) *Element        { return New("nav", children...) }
func Ol(children ...any) *Element         { return New("ol", children...) }
func Option(children ...any) *Element     { return New("option", children...) }
func P(children ...any) *Element          { return New("p", children...) }
func Pre(children ...any) *Element        { return New("pre", children...) }
func Section(children ...any) *Element    { return New("section", children...) }
func Select(children ...any) *Element     { return New("select", children...) }
func Small(children ...any) *Element      { return New("small", children...) }
func Span(children ...any) *Element       { return New("span", children...) }
func Strong(children ...any) *Element     { return New("strong", children...) }
func Summary(children ...any) *Element    { return New("summary", children...) }
func Table(children ...any) *Element      { return New("table", children...) }
func Tbody(children ...any) *Element      { return New("tbody", children...) }
func Td(children ...any) *Element         { return New("td", children...) }
func Textarea(children ...any) *Element   { return New("textarea", children...) }
func Th(children ...any) *Element         { return New("th", children...) }
func Thead(children ...any) *Element      { return New("thead", children...) }
func Tr(children ...any) *Element         { return New("tr", children...) }
func Ul(children ...any) *Element         { return New("ul", children...) }
