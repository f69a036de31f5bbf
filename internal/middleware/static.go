package middleware

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f0f0f0"/><path d="M100 45 150 90 100 155 50 90z" fill="#7ec8e3"/><path d="M100 45 125 90 100 155 75 90z" fill="#b3e0f2"/><text x="100" y="185" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">GEMSTORE</text></svg>`

// StaticFileServer serves payment channel logos, banner images and user
// avatars out of dir. Missing files get a placeholder diamond instead of
// a 404 so the storefront never renders a broken image.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if !strings.HasPrefix(name, filepath.Clean(dir)) {
			http.NotFound(w, r)
			return
		}

		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, name)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
