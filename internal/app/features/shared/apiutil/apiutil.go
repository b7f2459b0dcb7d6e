// internal/app/features/shared/apiutil/apiutil.go
package apiutil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	errorsfeature "github.com/dalemusser/rulepost/internal/app/features/errors"
	"github.com/dalemusser/rulepost/internal/app/system/authz"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxJSONBody bounds request bodies decoded by DecodeJSON.
const MaxJSONBody = 1 << 20

// Caller returns the signed-in caller or answers 401 and returns false.
func Caller(w http.ResponseWriter, r *http.Request, errLog *errorsfeature.ErrorLogger) (models.Caller, bool) {
	c, ok := authz.Caller(r)
	if !ok {
		errLog.Unauthenticated(w)
		return models.Caller{}, false
	}
	return c, true
}

// DecodeJSON decodes the request body into v. An empty body leaves v
// unchanged. Malformed JSON is answered with 400 and reported as false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, errLog *errorsfeature.ErrorLogger, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		errLog.BadRequest(w, "Malformed request body.")
		return false
	}
	return true
}

// ObjectIDParam parses the chi URL parameter name. A malformed id is
// answered with 400 and reported as false.
func ObjectIDParam(w http.ResponseWriter, r *http.Request, errLog *errorsfeature.ErrorLogger, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(chi.URLParam(r, name)))
	if err != nil {
		errLog.BadRequest(w, "Malformed "+name+".")
		return primitive.NilObjectID, false
	}
	return id, true
}
