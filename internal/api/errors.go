package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"shop-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type errorResponse struct {
	Message string `json:"message"`
}

var validationOnce sync.Once

// registerValidation makes validation errors report json/form field names
func registerValidation() {
	validationOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var domainErr *service.Error
	if errors.As(err, &domainErr) {
		status := http.StatusBadRequest
		if domainErr.Kind == service.KindNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, errorResponse{Message: domainErr.Message})
		return
	}

	h.logger.Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
}

func (h *Handler) respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Message: bindErrorMessage(err)})
}

// bindErrorMessage joins field problems as "field: problem; field: problem"
func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fieldPath(fe), describe(fe)))
		}
		return strings.Join(msgs, "; ")
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("%s: must be %s", typeErr.Field, typeErr.Type.String())
	}

	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return fmt.Sprintf("invalid number %q", numErr.Num)
	}

	return fmt.Sprintf("Malformed request: %v", err)
}

// fieldPath drops the struct name from the namespace: items[0].quantity
func fieldPath(fe validator.FieldError) string {
	parts := strings.SplitN(fe.Namespace(), ".", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("length must be at least %s", fe.Param())
		}
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("length must be at most %s", fe.Param())
		}
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	}
	return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
}

// pathID parses a positive int64 path parameter
func (h *Handler) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Message: fmt.Sprintf("Invalid %s", name)})
		return 0, false
	}
	return id, true
}
