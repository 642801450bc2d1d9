package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/fatflowers/posbridge/pkg/types"
)

// RegisterValidators adds the custom binding tags used by request structs to
// gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return types.IsCurrencyCode(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	})
}
