package importer

import (
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/sells-group/geonames-cli/internal/feed"
)

// attachProgress wires a byte progress bar onto a feed reader when progress
// reporting is enabled and the source size is known.
func (imp *Importer) attachProgress(size int64, description string, set func(feed.ProgressSink)) {
	if !imp.cfg.Progress || size <= 0 {
		return
	}
	set(progressbar.NewOptions64(
		size,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	))
}
