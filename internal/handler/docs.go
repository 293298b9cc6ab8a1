package handler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"html/template"
	"log/slog"
	"net/http"
)

const (
	docsTitle      = "Stripe Wallet API"
	docsSpecPath   = "/docs/openapi.yaml"
	swaggerUIAsset = "https://unpkg.com/swagger-ui-dist@5.17.14"
)

// DocsHandler serves the embedded OpenAPI document and a Swagger UI page for it.
type DocsHandler struct {
	spec []byte
	etag string
	page []byte
}

func NewDocsHandler(spec []byte) *DocsHandler {
	sum := sha256.Sum256(spec)

	var page bytes.Buffer
	if err := docsPage.Execute(&page, struct{ Title, SpecURL, Assets string }{docsTitle, docsSpecPath, swaggerUIAsset}); err != nil {
		slog.Error("failed to render docs page", "error", err)
	}

	return &DocsHandler{
		spec: spec,
		etag: `"` + hex.EncodeToString(sum[:8]) + `"`,
		page: page.Bytes(),
	}
}

func (h *DocsHandler) Spec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("ETag", h.etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == h.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	if _, err := w.Write(h.spec); err != nil {
		slog.Warn("failed to write openapi document", "error", err)
	}
}

func (h *DocsHandler) Page(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(h.page); err != nil {
		slog.Warn("failed to write docs page", "error", err)
	}
}

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="{{.Assets}}/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="{{.Assets}}/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: {{.SpecURL}},
      dom_id: "#swagger-ui",
      deepLinking: true,
      persistAuthorization: true
    });
  </script>
</body>
</html>`))
