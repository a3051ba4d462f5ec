package pagable

import (
	"errors"

	"github.com/euforicio/pagable/internal/pages"
	"github.com/euforicio/pagable/internal/protocol"
)

// PageError is an exception thrown by a script evaluated in the browser.
type PageError = protocol.ScriptError

var (
	// ErrDuplicateRoute is returned when two pages claim the same route.
	ErrDuplicateRoute = pages.ErrDuplicateRoute
	// ErrNoComponent is returned by ComponentFrom for contexts that do not
	// come from a component render.
	ErrNoComponent = errors.New("context does not belong to a component render")
	// ErrNoSession is returned by scripting calls on a component that is not
	// served to a browser.
	ErrNoSession = errors.New("component is not bound to a browser session")
	// ErrUnsupportedAsset is returned when requiring a file that is neither
	// a .js nor a .css file.
	ErrUnsupportedAsset = errors.New("unsupported asset type")
	// ErrNoHandle is returned when a page has no handle function.
	ErrNoHandle = errors.New("page has no handle function")
)
