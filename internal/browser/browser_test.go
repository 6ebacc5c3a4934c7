package browser

import (
	"slices"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://www.coingecko.com/en/coins/bitcoin", false},
		{"http://example.com", false},
		{"file:///etc/passwd", true},
		{"javascript:alert(1)", true},
		{"ftp://example.com", true},
		{"https://", true},
		{"", true},
	}

	for _, tt := range tests {
		_, err := Validate(tt.url)
		if tt.wantErr && err == nil {
			t.Errorf("Validate(%q): expected error, got nil", tt.url)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("Validate(%q): unexpected error: %v", tt.url, err)
		}
	}
}

func TestOpenRejectsBeforeLaunch(t *testing.T) {
	if err := Open("javascript:alert(1)"); err == nil {
		t.Error("expected rejection")
	}
}

func TestCommand(t *testing.T) {
	const link = "https://example.com/a?b=c&d=e"
	tests := []struct {
		goos string
		name string
		args []string
	}{
		{"darwin", "open", []string{link}},
		{"linux", "xdg-open", []string{link}},
		{"freebsd", "xdg-open", []string{link}},
		{"windows", "rundll32", []string{"url.dll,FileProtocolHandler", link}},
	}
	for _, tt := range tests {
		name, args := command(tt.goos, link)
		if name != tt.name || !slices.Equal(args, tt.args) {
			t.Errorf("command(%q) = %s %v, want %s %v", tt.goos, name, args, tt.name, tt.args)
		}
	}
}
