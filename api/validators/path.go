package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/isoweek"
)

const maxPathParamLen = 128

// PathParam returns the trimmed route parameter, rejecting empty or oversized values.
func PathParam(r *http.Request, key string) (string, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" || len(raw) > maxPathParamLen {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid path parameter").WithDetails(map[string]any{"field": key})
	}
	return raw, nil
}

func ParseWeekParam(r *http.Request, key string) (isoweek.Week, error) {
	raw, err := PathParam(r, key)
	if err != nil {
		return isoweek.Week{}, err
	}
	week, err := isoweek.Parse(raw)
	if err != nil {
		return isoweek.Week{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid week").WithDetails(map[string]any{"field": key, "value": raw})
	}
	return week, nil
}
