// Package static embeds the browser runtime and the default page shell.
package static

import (
	"bytes"
	"embed"
	"io/fs"
)

//go:embed app.js index.html
var assets embed.FS

const wsPlaceholder = "${WS_URL}"

// FS exposes the embedded assets.
func FS() fs.FS {
	return assets
}

// AppJS returns the client runtime connecting to wsRoute.
func AppJS(wsRoute string) []byte {
	data, err := assets.ReadFile("app.js")
	if err != nil {
		panic("static: app.js missing from embed: " + err.Error())
	}
	return bytes.ReplaceAll(data, []byte(wsPlaceholder), []byte(wsRoute))
}

// IndexHTML returns the default page shell.
func IndexHTML() []byte {
	data, err := assets.ReadFile("index.html")
	if err != nil {
		panic("static: index.html missing from embed: " + err.Error())
	}
	return data
}
