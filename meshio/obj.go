// Package meshio loads meshes and writes baked textures to disk.
package meshio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pthm-cable/patina/geom"
)

// MeshSource supplies the mesh a simulation runs on.
type MeshSource interface {
	Load() (*geom.Mesh, error)
}

// ObjFile is a MeshSource reading Wavefront OBJ geometry from a path.
type ObjFile struct {
	Path string
}

// Load reads the OBJ file.
func (f *ObjFile) Load() (*geom.Mesh, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("opening mesh: %w", err)
	}
	defer file.Close()

	mesh, err := ParseObj(file)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.Path, err)
	}
	return mesh, nil
}

// objKey identifies one distinct (position, uv, normal) combination. OBJ
// faces index the three streams independently; the mesh uses one unified
// vertex per combination, which keeps UV seams as duplicated vertices.
type objKey struct {
	v, vt, vn int
}

// ParseObj reads Wavefront OBJ geometry: v, vt, vn and f records. Faces with
// more than three corners are fan-triangulated. Unknown record types are
// ignored, as are groups, objects and materials.
func ParseObj(r io.Reader) (*geom.Mesh, error) {
	var (
		positions []geom.Vec3
		uvs       []geom.Vec2
		normals   []geom.Vec3
	)
	mesh := &geom.Mesh{}
	lookup := make(map[objKey]int)
	lineNo := 0

	resolve := func(spec string) (int, error) {
		key, err := parseFaceCorner(spec, len(positions), len(uvs), len(normals))
		if err != nil {
			return 0, err
		}
		if vi, ok := lookup[key]; ok {
			return vi, nil
		}
		var vert geom.Vertex
		vert.Position = positions[key.v]
		if key.vt >= 0 {
			vert.UV = uvs[key.vt]
		}
		if key.vn >= 0 {
			vert.Normal = normals[key.vn]
		}
		vi := len(mesh.Vertices)
		mesh.Vertices = append(mesh.Vertices, vert)
		lookup[key] = vi
		return vi, nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v":
			p, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			positions = append(positions, p)
		case "vt":
			uv, err := parseVec2(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			uvs = append(uvs, uv)
		case "vn":
			n, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			normals = append(normals, n)
		case "f":
			corners := fields[1:]
			if len(corners) < 3 {
				return nil, fmt.Errorf("line %d: face with %d corners", lineNo, len(corners))
			}
			first, err := resolve(corners[0])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			prev, err := resolve(corners[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			for _, spec := range corners[2:] {
				cur, err := resolve(spec)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				mesh.Triangles = append(mesh.Triangles, [3]int{first, prev, cur})
				prev = cur
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading mesh: %w", err)
	}
	if len(mesh.Triangles) == 0 {
		return nil, fmt.Errorf("mesh has no faces")
	}
	return mesh, nil
}

// parseFaceCorner parses "v", "v/vt", "v//vn" or "v/vt/vn", resolving
// 1-based and negative indices to 0-based. Missing streams come back as -1.
func parseFaceCorner(spec string, nv, nvt, nvn int) (objKey, error) {
	parts := strings.Split(spec, "/")
	key := objKey{v: -1, vt: -1, vn: -1}

	idx := func(s string, n int) (int, error) {
		raw, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("bad index %q", s)
		}
		i := raw - 1
		if raw < 0 {
			i = n + raw
		}
		if i < 0 || i >= n {
			return 0, fmt.Errorf("index %d out of range", raw)
		}
		return i, nil
	}

	var err error
	if key.v, err = idx(parts[0], nv); err != nil {
		return key, err
	}
	if len(parts) > 1 && parts[1] != "" {
		if key.vt, err = idx(parts[1], nvt); err != nil {
			return key, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if key.vn, err = idx(parts[2], nvn); err != nil {
			return key, err
		}
	}
	return key, nil
}

func parseVec3(fields []string) (geom.Vec3, error) {
	if len(fields) < 3 {
		return geom.Vec3{}, fmt.Errorf("expected 3 components, got %d", len(fields))
	}
	var v [3]float64
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return geom.Vec3{}, fmt.Errorf("bad component %q", fields[i])
		}
		v[i] = f
	}
	return geom.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

func parseVec2(fields []string) (geom.Vec2, error) {
	if len(fields) < 2 {
		return geom.Vec2{}, fmt.Errorf("expected 2 components, got %d", len(fields))
	}
	u, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return geom.Vec2{}, fmt.Errorf("bad component %q", fields[0])
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return geom.Vec2{}, fmt.Errorf("bad component %q", fields[1])
	}
	return geom.Vec2{X: u, Y: v}, nil
}
