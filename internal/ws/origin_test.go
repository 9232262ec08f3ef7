package ws

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOriginPolicy(t *testing.T) {
	policy := newOriginPolicy([]string{" https://Chat.Example.com ", "not a url", "http://localhost:3000"})

	cases := []struct {
		name   string
		origin string
		want   bool
	}{
		{"listed origin", "https://chat.example.com", true},
		{"case and path ignored", "HTTPS://CHAT.EXAMPLE.COM/rooms/abc", true},
		{"second origin", "http://localhost:3000", true},
		{"other port", "http://localhost:4000", false},
		{"scheme mismatch", "http://chat.example.com", false},
		{"garbage", "::::", false},
		{"no header", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}
			require.Equal(t, tc.want, policy.check(r))
		})
	}
}

func TestOriginPolicy_EmptyOrWildcardAllowsAll(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "https://anywhere.example")

	require.True(t, newOriginPolicy(nil).check(r))
	require.True(t, newOriginPolicy([]string{"*"}).check(r))
	require.True(t, newOriginPolicy([]string{"https://a.example", "*"}).check(r))
}
