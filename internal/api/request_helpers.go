package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/phrazzld/fileserver-api/internal/service"
)

// queryInt reads an integer query parameter, returning def when it is absent.
// A malformed value is reported as service.ErrInvalidPaging.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", service.ErrInvalidPaging, name)
	}
	return n, nil
}
