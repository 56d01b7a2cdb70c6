// Package swagger serves the embedded OpenAPI document and a ReDoc page for it.
package swagger

import (
	"context"
	"net/http"
)

// Routes served by Register.
const (
	DocsPath = "/api-docs"
	SpecPath = "/openapi.yaml"
)

// Register attaches the documentation routes to mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("swagger: nil mux")
	}
	mux.HandleFunc(DocsPath, static("text/html; charset=utf-8", []byte(docsPage)))
	mux.HandleFunc(SpecPath, static("application/yaml; charset=utf-8", OpenAPI))
}

// static serves body for GET and HEAD.
func static(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=300")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(body)
	}
}

const docsPage = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Ladder API Docs</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container"></redoc>
    <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
    <script>Redoc.init('` + SpecPath + `', { suppressWarnings: true }, document.getElementById('redoc-container'));</script>
  </body>
</html>`
