package pattern

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/antenna.report/internal/fsutil"
	"github.com/banshee-data/antenna.report/internal/security"
	"github.com/banshee-data/antenna.report/internal/sweep"
	"github.com/banshee-data/antenna.report/internal/timeutil"
)

// StampLayout formats the timestamp embedded in artifact names.
const StampLayout = "20060102-150405"

// Artifacts writes the outputs of one run into Dir.
type Artifacts struct {
	FS    fsutil.FileSystem
	Dir   string
	Floor float64
	// Label, when set, prefixes every file name.
	Label string
	Clock timeutil.Clock
}

// Saved lists the files written by Save.
type Saved struct {
	Stamp string
	CSV   string
	Plots []string
	HTML  string
}

// Files returns every path in s.
func (s *Saved) Files() []string {
	out := append([]string{s.CSV}, s.Plots...)
	return append(out, s.HTML)
}

func (a *Artifacts) name(base, stamp, ext string) string {
	n := base + "_" + stamp + ext
	if a.Label != "" {
		n = security.SanitizeFilename(a.Label) + "_" + n
	}
	return filepath.Join(a.Dir, n)
}

// Save writes the matrix CSV, one normalized polar PNG per frequency point
// and the combined HTML chart. freqs holds the frequency of each point.
func (a *Artifacts) Save(m *sweep.Matrix, freqs []float64) (*Saved, error) {
	_, points := m.Dims()
	if len(freqs) != points {
		return nil, fmt.Errorf("have %d frequencies for %d sweep points", len(freqs), points)
	}
	fs := a.FS
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	clock := a.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if err := fs.MkdirAll(a.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	stamp := clock.Now().Format(StampLayout)
	saved := &Saved{Stamp: stamp}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, m); err != nil {
		return nil, err
	}
	saved.CSV = a.name("collection", stamp, ".csv")
	if err := fs.WriteFile(saved.CSV, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", saved.CSV, err)
	}

	for j := 0; j < points; j++ {
		buf.Reset()
		norm := NormalizedDB(m.Column(j))
		if err := WritePolarPNG(&buf, norm, a.Floor, PlotTitle(freqs[j])); err != nil {
			return nil, fmt.Errorf("plot point %d: %w", j, err)
		}
		path := a.name(fmt.Sprintf("plot%d", j), stamp, ".png")
		if err := fs.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		saved.Plots = append(saved.Plots, path)
	}

	buf.Reset()
	title := fmt.Sprintf("Radiation Pattern %.3f-%.3f MHz", freqs[0]/1e6, freqs[len(freqs)-1]/1e6)
	if err := RenderPolarHTML(&buf, m, freqs, a.Floor, title); err != nil {
		return nil, err
	}
	saved.HTML = a.name("pattern", stamp, ".html")
	if err := fs.WriteFile(saved.HTML, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", saved.HTML, err)
	}
	return saved, nil
}
