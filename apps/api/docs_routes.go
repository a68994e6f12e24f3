package main

import (
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	contractName = "module-lifecycle"
	contractPath = "/openapi/" + contractName + ".json"
)

const swaggerUIPage = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>RetailOps module lifecycle API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({ url: %q, dom_id: '#swagger-ui', deepLinking: true });
    </script>
  </body>
</html>`

// registerDocsRoutes serves the embedded contract and a Swagger UI page for it.
// The JSON is rendered once; a contract that cannot be marshalled only disables the docs.
func registerDocsRoutes(router chi.Router, spec *openapi3.T, logger *zap.Logger) {
	page := []byte(fmt.Sprintf(swaggerUIPage, contractPath))
	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})

	body, err := spec.MarshalJSON()
	if err != nil {
		logger.Error("marshal openapi contract", zap.String("name", contractName), zap.Error(err))
		return
	}
	router.Get(contractPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})
}
