package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type subscribeBody struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
}

func TestDecodeJSON(t *testing.T) {
	var v subscribeBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"endpoint":"https://push.example.com/a"}`))
	require.NoError(t, DecodeJSON(req, &v))
	assert.Equal(t, "https://push.example.com/a", v.Endpoint)

	var empty subscribeBody
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, DecodeJSON(req, &empty), "empty body decodes to zero value")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"endpoint":`))
	assert.Error(t, DecodeJSON(req, &v))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"endpoint":"`+strings.Repeat("a", MaxBodyBytes)+`"}`))
	assert.Error(t, DecodeJSON(req, &v))
}

type selfValidating struct{ ok bool }

func (s selfValidating) Validate() error {
	if !s.ok {
		return assert.AnError
	}
	return nil
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(subscribeBody{Endpoint: "https://push.example.com/a"}))
	assert.Error(t, ValidateRequest(subscribeBody{}))
	assert.Error(t, ValidateRequest(subscribeBody{Endpoint: "not a url"}))

	assert.NoError(t, ValidateRequest(selfValidating{ok: true}))
	assert.ErrorIs(t, ValidateRequest(selfValidating{}), assert.AnError)
}
