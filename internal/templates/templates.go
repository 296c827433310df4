// Package templates holds the server-rendered pages.
package templates

import "embed"

// FS contains layout.html and one file per page, each defining a "content" block.
//
//go:embed *.html
var FS embed.FS
