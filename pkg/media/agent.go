package media

import "context"

// DownloadAgent is the external collaborator that turns a share URL into
// a local video file. The production implementation drives a controlled
// browser session; tests substitute a fake.
type DownloadAgent interface {
	// Download fetches the media behind shareURL into destDir and
	// returns the path of the file it wrote. The file name follows the
	// deterministic @<username>_video_<id>.mp4 convention.
	Download(ctx context.Context, shareURL, destDir string) (string, error)
}
