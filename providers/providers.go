// Package providers registers every built-in backend with video_acquirer.DefaultBackendRegistry. Import it for its
// side effects.
package providers

import (
	"github.com/alanbriolat/video-acquirer"
	"github.com/alanbriolat/video-acquirer/providers/youtube"
	"github.com/alanbriolat/video-acquirer/providers/ytdlp"
)

func init() {
	video_acquirer.DefaultBackendRegistry.MustCreatePriority(ytdlp.Name, ytdlp.New, video_acquirer.PriorityHighest)
	video_acquirer.DefaultBackendRegistry.MustCreatePriority(youtube.Name, youtube.New, video_acquirer.PriorityDefault)
}
