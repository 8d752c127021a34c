package enrollment

import "testing"

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{seconds: 0, want: "0s"},
		{seconds: -3, want: "0s"},
		{seconds: 5, want: "5s"},
		{seconds: 60, want: "1m"},
		{seconds: 3665, want: "1h 1m 5s"},
		{seconds: 7200, want: "2h"},
		{seconds: 90061, want: "1d 1h 1m 1s"},
		{seconds: 86400, want: "1d"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q; want %q", tt.seconds, got, tt.want)
		}
	}
}
