package recording

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
)

const timestampLayout = "20060102_150405"

// FilenameGenerator produces recording filenames of the form
// siaran_<YYYYMMDD_HHMMSS>.<ext>. The timestamp has one-second resolution, so
// two broadcasts started within the same second get a numeric suffix
// (siaran_..._1.<ext>) to keep filenames unique.
type FilenameGenerator struct {
	mu    sync.Mutex
	clock clockwork.Clock
	ext   string
	last  string
	seq   int
}

func NewFilenameGenerator(clock clockwork.Clock, ext string) *FilenameGenerator {
	return &FilenameGenerator{clock: clock, ext: ext}
}

// Next returns a filename unique within this process.
func (g *FilenameGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	base := "siaran_" + g.clock.Now().Format(timestampLayout)
	if base != g.last {
		g.last = base
		g.seq = 0
		return fmt.Sprintf("%s.%s", base, g.ext)
	}

	g.seq++
	return fmt.Sprintf("%s_%d.%s", base, g.seq, g.ext)
}
