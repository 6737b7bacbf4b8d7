package api

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/fsdevblog/peerinvest/internal/service"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// validateMaxBytes в отличии от тэга max который проверяет длину рун, - проверят длину байт в поле.
func validateMaxBytes(fl validator.FieldLevel) bool {
	maxBytes, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return len(str) <= maxBytes
}

// validateAccountNumber номер банковского счета: ровно 10 цифр.
func validateAccountNumber(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	return ok && service.IsAccountNumber(str)
}

// jsonTagName в ошибках валидации поле называется так же, как в json запроса.
func jsonTagName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}

func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("validator registration: unexpected engine %T", binding.Validator.Engine())
	}
	v.RegisterTagNameFunc(jsonTagName)
	if err := v.RegisterValidation("max_bytes", validateMaxBytes); err != nil {
		return fmt.Errorf("validator registration: %s", err.Error())
	}
	if err := v.RegisterValidation("account_number", validateAccountNumber); err != nil {
		return fmt.Errorf("validator registration: %s", err.Error())
	}
	return nil
}
