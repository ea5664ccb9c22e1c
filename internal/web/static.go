package web

import (
	"embed"
	"fmt"
	"io/fs"
)

// The page, its script and stylesheet ship inside the binary.
//
//go:embed static/*
var staticFiles embed.FS

// StaticFS returns the embedded page files rooted at static/.
func StaticFS() (fs.FS, error) {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("web: static fs: %w", err)
	}
	return sub, nil
}
