package proxy

import "testing"

func TestParseRangeHeader(t *testing.T) {
	cases := []struct {
		name      string
		header    string
		wantOK    bool
		wantStart int64
		wantEnd   *int64
	}{
		{"no prefix", "foo=0-10", false, 0, nil},
		{"multi-range rejected", "bytes=0-10,20-30", false, 0, nil},
		{"missing dash", "bytes=10", false, 0, nil},
		{"suffix range rejected", "bytes=-500", false, 0, nil},
		{"open ended", "bytes=10-", true, 10, nil},
		{"closed range converts inclusive to exclusive", "bytes=10-19", true, 10, int64Ptr(20)},
		{"end before start rejected", "bytes=20-10", false, 0, nil},
		{"negative start rejected", "bytes=-10-20", false, 0, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseRangeHeader(tc.header)
			if ok != tc.wantOK {
				t.Fatalf("parseRangeHeader(%q) ok = %v, want %v", tc.header, ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if got.start != tc.wantStart {
				t.Errorf("start = %d, want %d", got.start, tc.wantStart)
			}
			if (got.end == nil) != (tc.wantEnd == nil) {
				t.Fatalf("end = %v, want %v", got.end, tc.wantEnd)
			}
			if got.end != nil && *got.end != *tc.wantEnd {
				t.Errorf("end = %d, want %d", *got.end, *tc.wantEnd)
			}
		})
	}
}

func int64Ptr(v int64) *int64 { return &v }
