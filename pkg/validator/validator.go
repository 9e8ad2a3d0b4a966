package validator

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"shortener-core/pkg/urlbody"
)

// Init 在 gin 的默认校验器上注册自定义规则, 重复调用安全
//   - urlbody: 去掉 http(s):// 前缀后仍是带 host 的合法 URL
func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("urlbody", func(fl validator.FieldLevel) bool {
			return urlbody.Valid(urlbody.Normalize(fl.Field().String()))
		})
	}
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var errMsgs []string
		for _, e := range validationErrors {
			field := e.Field()
			switch e.Tag() {
			case "required":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不能为空", field))
			case "urlbody":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不是合法的 URL", field))
			case "max":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 长度不能超过 %s", field, e.Param()))
			default:
				errMsgs = append(errMsgs, fmt.Sprintf("%s 校验失败 (%s)", field, e.Tag()))
			}
		}
		return strings.Join(errMsgs, "; ")
	}
	return "请求参数错误"
}
