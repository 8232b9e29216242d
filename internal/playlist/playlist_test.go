package playlist

import "testing"

// TestEmbedURL verifies embed resolution for supported and unsupported links.
func TestEmbedURL(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{
			name:   "playlist",
			in:     "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			want:   "https://open.spotify.com/embed/playlist/37i9dQZF1DXcBWIGoYBM5M?utm_source=generator&theme=0",
			wantOK: true,
		},
		{
			name:   "album with query",
			in:     "https://open.spotify.com/album/4aawyAB9vmqN3uQ7FjRGTy?si=abc",
			want:   "https://open.spotify.com/embed/album/4aawyAB9vmqN3uQ7FjRGTy?utm_source=generator&theme=0",
			wantOK: true,
		},
		{
			name:   "artist",
			in:     "https://open.spotify.com/artist/0OdUWJ0sBjDrqHygGUXeCF",
			want:   "https://open.spotify.com/embed/artist/0OdUWJ0sBjDrqHygGUXeCF?utm_source=generator&theme=0",
			wantOK: true,
		},
		{name: "track", in: "https://open.spotify.com/track/11dFghVXANMlKmJXsNCbNl"},
		{name: "empty", in: ""},
		{name: "not a url", in: "my favourite playlist"},
		{name: "missing id", in: "https://open.spotify.com/playlist/"},
		{name: "root", in: "https://open.spotify.com/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EmbedURL(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("EmbedURL(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
