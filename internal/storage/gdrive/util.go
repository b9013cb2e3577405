package gdrive

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

func escapeQuery(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if ok := errors.As(err, &apiErr); ok {
		return apiErr.Code == http.StatusNotFound
	}

	return false
}
