// Package web carries the dashboard's templates and static assets.
package web

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed templates static
var assets embed.FS

// Templates returns dir when it exists on disk, so templates can be edited
// without a rebuild, and the embedded copy otherwise.
func Templates(dir string) fs.FS {
	return pick(dir, "templates")
}

// Static works like Templates for the stylesheet and images.
func Static(dir string) fs.FS {
	return pick(dir, "static")
}

func pick(dir, embedded string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}
	sub, err := fs.Sub(assets, embedded)
	if err != nil {
		// the embedded tree is fixed at build time
		panic(err)
	}
	return sub
}
