//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "keyvisor/docs"
)

// MountSwagger serves the swagger UI at /swagger/ and the OpenAPI document
// registered by package docs at /swagger/doc.json.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
