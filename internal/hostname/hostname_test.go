package hostname

import (
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr error
	}{
		{name: "plain", url: "https://news.example.com/a/b?c=d", want: "news.example.com"},
		{name: "port and case", url: "http://WWW.Example.COM:8080/", want: "www.example.com"},
		{name: "whitespace", url: "  https://docs.example.com  ", want: "docs.example.com"},
		{name: "ipv6", url: "http://[::1]:80/", want: "::1"},
		{name: "trailing dot", url: "https://Social.Example.com./feed", want: "social.example.com"},
		{name: "no host", url: "about:blank", wantErr: ErrNoHostname},
		{name: "relative", url: "/just/a/path", wantErr: ErrNoHostname},
		{name: "empty", url: "", wantErr: ErrNoHostname},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.url)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResolveMalformed(t *testing.T) {
	if _, err := Resolve("http://%zz"); err == nil {
		t.Fatal("Expected parse error for malformed url")
	}
}

func TestResolverCaches(t *testing.T) {
	r, err := NewResolver(2)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		host, err := r.Resolve("https://video.example.com/watch")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if host != "video.example.com" {
			t.Errorf("Expected video.example.com, got %s", host)
		}
	}
	if r.cache.Len() != 1 {
		t.Errorf("Expected one cached entry, got %d", r.cache.Len())
	}

	if _, err := r.Resolve("chrome://newtab/"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := r.Resolve("not a url"); !errors.Is(err, ErrNoHostname) {
		t.Errorf("Expected ErrNoHostname, got %v", err)
	}
	if r.cache.Len() != 2 {
		t.Errorf("Expected failures not to be cached, got %d entries", r.cache.Len())
	}
}

func TestNewResolverInvalidSize(t *testing.T) {
	if _, err := NewResolver(0); err == nil {
		t.Error("Expected error for zero cache size")
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		site    string
		want    string
		wantErr bool
	}{
		{site: "YouTube.com", want: "youtube.com"},
		{site: " reddit.com. ", want: "reddit.com"},
		{site: "https://www.Instagram.com/explore", want: "www.instagram.com"},
		{site: "", wantErr: true},
		{site: "two words.com", wantErr: true},
		{site: "bad..name", wantErr: true},
		{site: "user@host.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.site, func(t *testing.T) {
			got, err := Canonical(tt.site)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
