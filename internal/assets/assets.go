package assets

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/relabs-tech/anchor_stage/internal/transform"
)

// ErrMissing is returned when a named mesh is not present in the library.
// Missing assets are non-fatal: the caller skips placement for that name
// and keeps going.
var ErrMissing = errors.New("asset not found")

// Asset is a resolved mesh: its file plus the bounding extents of the
// unscaled geometry.
type Asset struct {
	Name     string
	MeshPath string
	Extents  transform.Vec3
}

// Library resolves named Wavefront OBJ meshes under a root directory and
// computes per-object uniform scale factors from configured target sizes.
type Library struct {
	root          string
	targets       map[string]float64
	defaultTarget float64
}

// NewLibrary creates a library rooted at dir. targets maps object names to
// their intended real-world footprint in metres; names without an entry
// use defaultTarget.
func NewLibrary(dir string, targets map[string]float64, defaultTarget float64) *Library {
	if defaultTarget <= 0 {
		defaultTarget = 1.0
	}
	return &Library{root: dir, targets: targets, defaultTarget: defaultTarget}
}

// Resolve loads <root>/<name>.obj and scans its vertices for bounding
// extents.
func (l *Library) Resolve(name string) (Asset, error) {
	path := filepath.Join(l.root, name+".obj")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Asset{}, fmt.Errorf("%w: %s", ErrMissing, name)
		}
		return Asset{}, fmt.Errorf("open mesh %s: %w", path, err)
	}
	defer f.Close()

	extents, err := scanExtents(f)
	if err != nil {
		return Asset{}, fmt.Errorf("mesh %s: %w", path, err)
	}
	return Asset{Name: name, MeshPath: path, Extents: extents}, nil
}

// ScaleFor returns the uniform scale factor for a named object:
// targetSize / max(extentX, extentZ) of the unscaled mesh.
func (l *Library) ScaleFor(name string) (float64, error) {
	a, err := l.Resolve(name)
	if err != nil {
		return 0, err
	}

	target, ok := l.targets[name]
	if !ok {
		target = l.defaultTarget
	}

	footprint := a.Extents.X
	if a.Extents.Z > footprint {
		footprint = a.Extents.Z
	}
	if footprint <= 0 {
		log.Printf("assets: mesh %q has a degenerate footprint, using scale 1", name)
		return 1.0, nil
	}
	return target / footprint, nil
}

// scanExtents reads "v x y z" vertex lines and returns max-min per axis.
func scanExtents(f *os.File) (transform.Vec3, error) {
	var (
		min, max transform.Vec3
		seen     bool
	)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "v ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		x, errX := strconv.ParseFloat(fields[1], 64)
		y, errY := strconv.ParseFloat(fields[2], 64)
		z, errZ := strconv.ParseFloat(fields[3], 64)
		if errX != nil || errY != nil || errZ != nil {
			continue // tolerate junk lines; extents come from the rest
		}

		if !seen {
			min = transform.Vec3{X: x, Y: y, Z: z}
			max = min
			seen = true
			continue
		}
		if x < min.X {
			min.X = x
		}
		if y < min.Y {
			min.Y = y
		}
		if z < min.Z {
			min.Z = z
		}
		if x > max.X {
			max.X = x
		}
		if y > max.Y {
			max.Y = y
		}
		if z > max.Z {
			max.Z = z
		}
	}
	if err := scanner.Err(); err != nil {
		return transform.Vec3{}, fmt.Errorf("read mesh: %w", err)
	}
	if !seen {
		return transform.Vec3{}, fmt.Errorf("mesh has no vertices")
	}
	return max.Sub(min), nil
}
