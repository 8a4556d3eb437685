package proxycache

import "testing"

func TestResolveScheme(t *testing.T) {
	cases := []struct {
		name           string
		pseudoScheme   string
		forwardedProto string
		listenerIsTLS  bool
		authority      Authority
		want           string
	}{
		{"pseudo header wins", "HTTPS", "http", false, Authority{}, "https"},
		{"forwarded proto", "", "https, http", false, Authority{}, "https"},
		{"listener heuristic", "", "", true, Authority{}, "https"},
		{"port 443 heuristic", "", "", false, Authority{Port: "443"}, "https"},
		{"default http", "", "", false, Authority{Port: "8080"}, "http"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveScheme(tc.pseudoScheme, tc.forwardedProto, tc.listenerIsTLS, tc.authority)
			if got != tc.want {
				t.Errorf("ResolveScheme() = %q, want %q", got, tc.want)
			}
		})
	}
}
