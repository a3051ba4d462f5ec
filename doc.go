// Package pagable serves server-driven web pages.
//
// A project has component pages, written in Go and registered on an App, and
// markdown pages read from src/pages. The browser loads a small runtime that
// opens a WebSocket, names the page it wants, and receives rendered HTML.
// Component state lives on the server for as long as the tab stays
// connected; components can also evaluate JavaScript in the browser and
// await its result.
//
//	app := pagable.New(pagable.DefaultConfig(), nil)
//	app.MustRegister(pagable.Page{
//		Route: "/",
//		Handle: func(ctx context.Context, c *pagable.Component) (element.Node, error) {
//			title, err := pagable.NewScript(c).Run(ctx, "return document.title")
//			if err != nil {
//				return nil, err
//			}
//			return element.H1("title is ", string(title)), nil
//		},
//	})
//	err := app.Run(ctx)
package pagable
