package browser

import "testing"

func TestParseShareURL(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		wantUsername string
		wantID       string
		wantErr      bool
	}{
		{
			name:         "canonical share URL",
			url:          "https://www.tiktok.com/@user0/video/7000000000000000001?is_copy_url=1&is_from_webapp=v1",
			wantUsername: "user0",
			wantID:       "7000000000000000001",
		},
		{
			name:         "no query parameters",
			url:          "https://www.tiktok.com/@someone/video/123",
			wantUsername: "someone",
			wantID:       "123",
		},
		{
			name:    "missing @ prefix",
			url:     "https://www.tiktok.com/user0/video/123",
			wantErr: true,
		},
		{
			name:    "not a video path",
			url:     "https://www.tiktok.com/@user0/live",
			wantErr: true,
		},
		{
			name:    "profile URL",
			url:     "https://www.tiktok.com/@user0",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			username, id, err := parseShareURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseShareURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if username != tt.wantUsername || id != tt.wantID {
				t.Errorf("parseShareURL() = (%s, %s), want (%s, %s)", username, id, tt.wantUsername, tt.wantID)
			}
		})
	}
}

func TestNewAgentDefaults(t *testing.T) {
	agent := NewAgent("", 0, nil)
	if agent.timeout <= 0 {
		t.Error("zero timeout should fall back to a positive default")
	}
}
