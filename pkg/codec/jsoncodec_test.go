package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_LenientDecode(t *testing.T) {
	var v struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, JSON.Unmarshal([]byte(`{"access_token":"t","instance_url":"https://x"}`), &v))
	assert.Equal(t, "t", v.AccessToken)

	assert.Error(t, JSON.Unmarshal([]byte(`{"a":1} {"b":2}`), &v))
	assert.Error(t, JSON.Unmarshal([]byte(`<html>`), &v))
}

func TestJSON_MarshalKeepsMarkup(t *testing.T) {
	b, err := JSON.Marshal(map[string]string{"d": "<a&b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"d":"<a&b>"}`, string(b))
	assert.Equal(t, "application/json", JSON.ContentType())
}
