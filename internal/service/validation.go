package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"intake-forms/backend/internal/model"
)

// ValidationError 输入校验失败，Field 指明出错字段
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// AsValidationError 判断并取出 ValidationError
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// validate 全局校验器，字段名取 json tag
var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// ── 字段定义校验 ──

// validateFieldDescriptors 校验模板字段：结构约束、名称唯一、select 必须有选项
func validateFieldDescriptors(fields []model.FieldDescriptor) error {
	if len(fields) == 0 {
		return newValidationError("fields", "至少需要一个字段")
	}
	seen := make(map[string]struct{}, len(fields))
	for i := range fields {
		fd := &fields[i]
		fd.Name = strings.TrimSpace(fd.Name)
		path := fmt.Sprintf("fields[%d]", i)

		if err := validate.Struct(fd); err != nil {
			var ves validator.ValidationErrors
			if errors.As(err, &ves) && len(ves) > 0 {
				return newValidationError(path+"."+ves[0].Field(), describeTag(ves[0]))
			}
			return newValidationError(path, err.Error())
		}
		if _, dup := seen[fd.Name]; dup {
			return newValidationError(path+".name", fmt.Sprintf("字段名 %q 重复", fd.Name))
		}
		seen[fd.Name] = struct{}{}

		if fd.Type == model.FieldTypeSelect && len(fd.Options) == 0 {
			return newValidationError(path+".options", "下拉字段必须提供选项")
		}
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "max":
		return "长度不能超过 " + fe.Param()
	case "oneof":
		return "取值必须为 " + fe.Param() + " 之一"
	default:
		return "校验失败（" + fe.Tag() + "）"
	}
}

// ── 答案校验 ──

// validateAnswerValue 按字段类型校验单个文本答案；空值由调用方处理
func validateAnswerValue(fd model.FieldDescriptor, value string) error {
	switch fd.Type {
	case model.FieldTypeEmail:
		if validate.Var(value, "email") != nil {
			return newValidationError(fd.Name, "邮箱格式不正确")
		}
	case model.FieldTypeNumber:
		if validate.Var(value, "numeric") != nil {
			return newValidationError(fd.Name, "必须为数字")
		}
	case model.FieldTypeDate:
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return newValidationError(fd.Name, "日期格式应为 YYYY-MM-DD")
		}
	case model.FieldTypeSelect:
		if len(fd.Options) > 0 && !containsString(fd.Options, value) {
			return newValidationError(fd.Name, "不是可选值")
		}
	}
	return nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
