package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"reflect"
	"strings"

	"farmapos/internal/apierror"
	"farmapos/internal/dto"
	"farmapos/internal/middleware"
	"farmapos/internal/model"
	"farmapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	validate = validator.New()
	trans    ut.Translator
)

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	// Amounts outside the money range map to ±Inf without being expanded,
	// so the "money" rule rejects them cheaply.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		v, ok := field.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		if !dto.InMoneyRange(v) {
			return math.Inf(v.Sign())
		}
		f, _ := v.Float64()
		return f
	}, decimal.Decimal{})

	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(dto.Date); ok {
			return v.Time
		}
		return nil
	}, dto.Date{})

	// Report JSON field names instead of Go field names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})

	maxMoney := dto.MaxMoney.InexactFloat64()
	_ = validate.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsInf(f, 0) && f <= maxMoney
	})

	_ = validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return model.StrongPassword(fl.Field().String())
	})

	locale := en.New()
	trans, _ = ut.New(locale, locale).GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(validate, trans)
	_ = validate.RegisterTranslation("password", trans,
		func(t ut.Translator) error {
			return t.Add("password", "{0} must be at least 8 characters and contain an uppercase letter, a lowercase letter, a digit and a special character", true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T("password", fe.Field())
			return msg
		},
	)
	_ = validate.RegisterTranslation("money", trans,
		func(t ut.Translator) error {
			return t.Add("money", "{0} must be an amount of at most {1}", true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T("money", fe.Field(), dto.MaxMoney.StringFixed(2))
			return msg
		},
	)
}

// bindAndValidate binds the JSON body and runs go-playground/validator tags.
// Returns false after writing the error response; the caller should return.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && te.Field != "" {
			c.JSON(http.StatusBadRequest, apierror.NewValidation(map[string]string{
				te.Field: te.Field + " must be " + describeType(te.Type),
			}))
			return false
		}
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON body"))
		return false
	}
	return validateStruct(c, req)
}

var dateType = reflect.TypeOf(dto.Date{})

func describeType(t reflect.Type) string {
	if t == nil {
		return "a valid value"
	}
	if t == dateType {
		return "a date (YYYY-MM-DD) or RFC 3339 timestamp"
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Slice, reflect.Array:
		return "a list"
	default:
		return "an object"
	}
}

// bindQuery binds and validates query parameters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid query parameters"))
		return false
	}
	return validateStruct(c, req)
}

func validateStruct(c *gin.Context, req interface{}) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, apierror.New("invalid request"))
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := fe.Namespace()
		if i := strings.IndexByte(key, '.'); i >= 0 {
			key = key[i+1:]
		}
		if _, dup := fields[key]; !dup {
			fields[key] = fe.Translate(trans)
		}
	}
	c.JSON(http.StatusBadRequest, apierror.NewValidation(fields))
	return false
}

// respondError maps a service error onto the HTTP error taxonomy.
// Anything unrecognised becomes a 500 and is logged by ErrorHandler.
func respondError(c *gin.Context, err error) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, apierror.NewValidation(ve.Fields))
		return
	}
	var se *service.Error
	if errors.As(err, &se) {
		c.JSON(statusFor(se.Kind), apierror.New(se.Msg))
		return
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("internal server error"))
}

func statusFor(kind error) int {
	switch {
	case errors.Is(kind, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(kind, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(kind, service.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

// pathID parses the :id route parameter, answering 400 when malformed.
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

// actor builds the service Actor from the verified token claims.
func actor(c *gin.Context) service.Actor {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return service.Actor{}
	}
	return service.Actor{
		ID:   claims.UserUUID(),
		Name: claims.Name,
		Role: model.Role(claims.Role),
	}
}
