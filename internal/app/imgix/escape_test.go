package imgix

import "testing"

func TestEscape(t *testing.T) {
	tests := []struct {
		in      string
		path    string
		segment string
	}{
		{"abcXYZ019-._~", "abcXYZ019-._~", "abcXYZ019-._~"},
		{"a/b", "a/b", "a%2Fb"},
		{"a b", "a%20b", "a%20b"},
		{"()*!'", "%28%29%2A%21%27", "%28%29%2A%21%27"},
		{"ǝ", "%C7%9D", "%C7%9D"},
		{"%", "%25", "%25"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := escapePath(tt.in); got != tt.path {
			t.Errorf("escapePath(%q): got %q, want %q", tt.in, got, tt.path)
		}
		if got := escapeSegment(tt.in); got != tt.segment {
			t.Errorf("escapeSegment(%q): got %q, want %q", tt.in, got, tt.segment)
		}
	}
}

func TestEncodePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/users/1.png", "users/1.png"},
		{"users/1.png", "users/1.png"},
		{"https://a.com/b c.png", "https%3A%2F%2Fa.com%2Fb%20c.png"},
		{"http://a.com/", "http%3A%2F%2Fa.com%2F"},
		{"httpdocs/a.png", "httpdocs/a.png"},
		{"/http://a.com", "http%3A//a.com"},
	}
	for _, tt := range tests {
		if got := encodePath(tt.in); got != tt.want {
			t.Errorf("encodePath(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
