package handler

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/melafrancom/erp-bulonera/internal/apierror"
	"github.com/melafrancom/erp-bulonera/internal/calc"
	"github.com/melafrancom/erp-bulonera/internal/middleware"
	"github.com/melafrancom/erp-bulonera/internal/service"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondServiceError maps service-layer errors to HTTP responses. State
// machine violations are 409, monetary invariant violations 422, lookups 404;
// anything unrecognized is deferred to the ErrorHandler middleware as a 500.
func respondServiceError(c *gin.Context, err error) {
	var illegal *service.IllegalTransitionError
	var notConvertible *service.NotConvertibleError
	var notInConflict *service.NotInConflictError

	switch {
	case errors.As(err, &illegal):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.As(err, &notConvertible):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.As(err, &notInConflict):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.Is(err, calc.ErrInvalidDiscount),
		errors.Is(err, calc.ErrNonPositiveQuantity),
		errors.Is(err, calc.ErrNegativeUnitPrice):
		c.JSON(http.StatusUnprocessableEntity, apierror.New(err.Error()))
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, apierror.New("Recurso no encontrado"))
	default:
		// validation-ish errors from the service carry user-facing messages
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	}
}

// parseUUIDParam reads a path parameter as UUID, writing the 400 itself.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Parametro "+name+" invalido"))
		return uuid.Nil, false
	}
	return id, true
}

// actorFromClaims builds the acting user from the validated JWT claims.
func actorFromClaims(c *gin.Context) service.Actor {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return service.Actor{}
	}
	id, _ := uuid.Parse(claims.UserID)
	return service.Actor{ID: id, Username: claims.Username}
}
