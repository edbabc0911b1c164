package utils_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/revalytiq-client/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"string", `"bad"`, []string{"bad"}},
		{"empty string", `""`, nil},
		{"null", `null`, nil},
		{"array", `["a","b"]`, []string{"a", "b"}},
		{"object sorted by key", `{"username":["taken"],"email":["invalid"]}`, []string{"invalid", "taken"}},
		{"nested", `{"errors":{"password":["too short",["weak"]]}}`, []string{"too short", "weak"}},
		{"number", `42`, []string{"42"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v any
			require.NoError(t, json.Unmarshal([]byte(tt.body), &v))
			require.Equal(t, tt.want, utils.Messages(v))
		})
	}
}
