package validator

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

type form struct {
	URL string `json:"url" binding:"required,urlbody,max=2048"`
}

func TestURLBodyRule(t *testing.T) {
	Init()

	assert.NoError(t, binding.Validator.ValidateStruct(&form{URL: "https://example.com/page"}))
	assert.NoError(t, binding.Validator.ValidateStruct(&form{URL: "example.com"}))

	err := binding.Validator.ValidateStruct(&form{URL: "https://"})
	if assert.Error(t, err) {
		assert.Contains(t, GetErrorMsg(err), "不是合法的 URL")
	}

	err = binding.Validator.ValidateStruct(&form{})
	if assert.Error(t, err) {
		assert.Contains(t, GetErrorMsg(err), "不能为空")
	}
}
