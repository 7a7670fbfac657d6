package callback

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadResponse(t *testing.T) {
	t.Parallel()
	t.Run("form-post", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		form := url.Values{
			"state":    {"st_1234"},
			"id_token": {"header.payload.sig"},
		}
		req := httptest.NewRequest("POST", "/callback", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		got, err := ReadResponse(req)
		require.NoError(err)
		assert.Equal("st_1234", got.State)
		assert.Equal("header.payload.sig", got.IDToken)
		assert.Empty(got.Error)
	})
	t.Run("json-body", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		body := `{"state":"st_1234","id_token":"header.payload.sig"}`
		req := httptest.NewRequest("POST", "/callback", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")

		got, err := ReadResponse(req)
		require.NoError(err)
		assert.Equal("st_1234", got.State)
		assert.Equal("header.payload.sig", got.IDToken)
	})
	t.Run("invalid-json-body", func(t *testing.T) {
		assert := assert.New(t)
		req := httptest.NewRequest("POST", "/callback", strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		_, err := ReadResponse(req)
		assert.Error(err)
	})
	t.Run("empty-body", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		req := httptest.NewRequest("POST", "/callback", nil)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		got, err := ReadResponse(req)
		require.NoError(err)
		assert.Empty(got.State)
		assert.Empty(got.IDToken)
	})
	t.Run("provider-error", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		form := url.Values{
			"error":             {"access_denied"},
			"error_description": {"the user declined"},
			"error_uri":         {"https://issuer.example.com/errors/denied"},
		}
		req := httptest.NewRequest("POST", "/callback", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		got, err := ReadResponse(req)
		require.NoError(err)
		respErr := got.authError()
		require.NotNil(respErr)
		assert.Equal("access_denied", respErr.Error)
		assert.Equal("the user declined", respErr.Description)
		assert.Equal("https://issuer.example.com/errors/denied", respErr.URI)
	})
	t.Run("no-provider-error", func(t *testing.T) {
		assert := assert.New(t)
		assert.Nil((&Response{State: "st_1234"}).authError())
	})
	t.Run("nil-request", func(t *testing.T) {
		assert := assert.New(t)
		_, err := ReadResponse(nil)
		assert.Error(err)
	})
}
