package handler

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
)

// APIError is the body of every non-2xx JSON response
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads the body into dst and runs its validate tags
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.InvalidArgument("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fe.Field()+" failed on "+fe.Tag())
			}
			return domain.InvalidArgument(strings.Join(msgs, "; "))
		}
		return domain.InvalidArgument(err.Error())
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, domain.InvalidArgument("invalid " + name)
	}
	return id, nil
}

var kindStatus = map[domain.Kind]int{
	domain.KindInvalidArgument: http.StatusBadRequest,
	domain.KindNotFound:        http.StatusNotFound,
	domain.KindUnauthorized:    http.StatusForbidden,
	domain.KindConflict:        http.StatusConflict,
	domain.KindUnexpected:      http.StatusInternalServerError,
}

// writeError maps a service error to its status. Unexpected errors are
// logged and their detail withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, logger logrus.FieldLogger, err error) {
	kind := domain.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := "something went wrong, try again"
	var de *domain.Error
	if kind != domain.KindUnexpected && errors.As(err, &de) {
		message = de.Message
	}
	if kind == domain.KindConflict {
		message = "the list changed while you were editing, reload and try again"
	}

	requestID := RequestIDFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       r.URL.Path,
		}).Error("request failed")
	}

	writeJSON(w, status, APIError{
		Code:    string(kind),
		Message: message,
		Meta:    map[string]string{"request_id": requestID},
	})
}
