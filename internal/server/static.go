package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// frontend serves files from the built bundle in root. Any GET that names no
// file gets the entry document so client-side routing can take over.
func frontend(root, index string) gin.HandlerFunc {
	entry := filepath.Join(root, index)

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
			return
		}

		name := filepath.Join(root, filepath.FromSlash(path.Clean("/"+c.Request.URL.Path)))
		if info, err := os.Stat(name); err == nil && info.Mode().IsRegular() {
			c.File(name)
			return
		}

		c.File(entry)
	}
}
