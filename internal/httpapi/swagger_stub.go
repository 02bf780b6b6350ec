//go:build !swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
)

// MountSwagger is a no-op by default. Build with -tags=swagger to serve the
// UI at /swagger/.
func MountSwagger(r chi.Router) {}
