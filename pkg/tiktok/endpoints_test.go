package tiktok

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenURL(t *testing.T) {
	assert.Equal(t, "https://open.tiktokapis.com/v2/oauth/token/", TokenURL(""))
	assert.Equal(t, "http://localhost:9999/v2/oauth/token/", TokenURL("http://localhost:9999"))
}

func TestQueryURL(t *testing.T) {
	url := QueryURL("")
	assert.Contains(t, url, "https://open.tiktokapis.com/v2/research/video/query/?fields=")
	assert.Contains(t, url, "id%2Cusername%2Ccreate_time")
}

func TestShareURL(t *testing.T) {
	got := ShareURL("https://www.tiktok.com/@user0/video/7000000000000000001")
	assert.Equal(t, "https://www.tiktok.com/@user0/video/7000000000000000001?is_copy_url=1&is_from_webapp=v1", got)
}

func TestVideoFilename(t *testing.T) {
	assert.Equal(t, "@user0_video_7000000000000000001.mp4", VideoFilename("user0", "7000000000000000001"))
}

func TestClampPageSize(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero uses default", 0, DefaultPageSize},
		{"negative uses default", -5, DefaultPageSize},
		{"in range passes through", 50, 50},
		{"over maximum clamps", 500, MaxPageSize},
		{"maximum passes through", MaxPageSize, MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampPageSize(tt.in))
		})
	}
}
