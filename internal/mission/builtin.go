package mission

import (
	"embed"
	"io/fs"
)

//go:embed content
var content embed.FS

// Builtin returns the mission packs shipped with the binary
func Builtin() fs.FS {
	sub, err := fs.Sub(content, "content")
	if err != nil {
		// "content" is embedded above, so Sub cannot fail
		panic(err)
	}
	return sub
}
