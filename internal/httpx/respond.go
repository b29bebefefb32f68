package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/identity"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/go-playground/validator/v10"
	"github.com/zeromicro/go-zero/core/logx"
)

const maxBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names so errors match what the client sent
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into dst and runs its validate tags. An empty
// body decodes as {}.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return orders.Invalid("", "invalid json")
	}
	return check(dst)
}

func check(v any) error {
	err := validate.Struct(v)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return orders.Invalid(fe.Field(), ruleText(fe))
	}
	return err
}

func ruleText(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gt", "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "email":
		return "must be an email address"
	}
	return "failed " + fe.Tag()
}

func status(err error) int {
	var (
		cross *cart.CrossMerchantCartError
		gwErr *payment.GatewayError
	)
	switch {
	case errors.Is(err, orders.ErrValidation):
		return http.StatusBadRequest
	case errors.As(err, &cross),
		errors.Is(err, orders.ErrSubtotalMismatch),
		errors.Is(err, orders.ErrMissingMerchantContact),
		errors.Is(err, orders.ErrOutOfStock):
		return http.StatusUnprocessableEntity
	case errors.Is(err, identity.ErrMissingToken), errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, orders.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, orders.ErrUnknownReference):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrDuplicateCheckout),
		errors.Is(err, orders.ErrCheckoutInProgress),
		errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, payment.ErrGatewayTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &gwErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError is the one place domain errors become HTTP responses. Server
// errors are logged and their detail withheld.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := status(err)
	body := errorBody{Error: err.Error()}
	var verr *orders.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}
	switch {
	case code == http.StatusInternalServerError:
		logx.WithContext(r.Context()).Errorw("request failed",
			logx.Field("path", r.URL.Path), logx.Field("err", err.Error()))
		body.Error = "internal error"
	case code >= http.StatusBadGateway:
		logx.WithContext(r.Context()).Errorw("payment gateway failed",
			logx.Field("path", r.URL.Path), logx.Field("err", err.Error()))
		body.Error = "payment gateway unavailable"
	}
	writeJSON(w, code, body)
}
