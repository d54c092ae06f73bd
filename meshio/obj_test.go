package meshio

import (
	"math"
	"strings"
	"testing"

	"github.com/pthm-cable/patina/geom"
)

const quadObj = `# a unit quad
v 0 0 0
v 1 0 0
v 1 0 1
v 0 0 1
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 1 0
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestParseObjQuad(t *testing.T) {
	mesh, err := ParseObj(strings.NewReader(quadObj))
	if err != nil {
		t.Fatalf("ParseObj failed: %v", err)
	}

	if len(mesh.Vertices) != 4 {
		t.Errorf("got %d vertices, want 4", len(mesh.Vertices))
	}
	// Quad fan-triangulates into two triangles.
	if mesh.TriangleCount() != 2 {
		t.Fatalf("got %d triangles, want 2", mesh.TriangleCount())
	}
	want := [][3]int{{0, 1, 2}, {0, 2, 3}}
	for i, tri := range mesh.Triangles {
		if tri != want[i] {
			t.Errorf("triangle %d = %v, want %v", i, tri, want[i])
		}
	}

	v := mesh.Vertices[2]
	if v.Position != (geom.Vec3{X: 1, Y: 0, Z: 1}) {
		t.Errorf("vertex 2 position = %v", v.Position)
	}
	if v.UV != (geom.Vec2{X: 1, Y: 1}) {
		t.Errorf("vertex 2 UV = %v", v.UV)
	}
	if v.Normal != (geom.Vec3{X: 0, Y: 1, Z: 0}) {
		t.Errorf("vertex 2 normal = %v", v.Normal)
	}
}

func TestParseObjSeamDuplicatesVertices(t *testing.T) {
	// Two triangles share positions 2 and 3 but use different UVs there:
	// a UV seam. Each (v, vt) combination gets its own mesh vertex.
	obj := `
v 0 0 0
v 1 0 0
v 1 0 1
v 0 0 1
vt 0 0
vt 0.4 0
vt 0.4 1
vt 0.6 0
vt 1 0
vt 1 1
f 1/1 2/2 3/3
f 2/4 3/6 4/5
`
	mesh, err := ParseObj(strings.NewReader(obj))
	if err != nil {
		t.Fatalf("ParseObj failed: %v", err)
	}
	if len(mesh.Vertices) != 6 {
		t.Errorf("got %d vertices, want 6 (seam corners duplicated)", len(mesh.Vertices))
	}
	if mesh.TriangleCount() != 2 {
		t.Errorf("got %d triangles, want 2", mesh.TriangleCount())
	}

	// No vertex index shared between the triangles: separate UV islands.
	used := map[int]bool{}
	for _, vi := range mesh.Triangles[0] {
		used[vi] = true
	}
	for _, vi := range mesh.Triangles[1] {
		if used[vi] {
			t.Errorf("triangles share vertex %d across a UV seam", vi)
		}
	}
}

func TestParseObjFormats(t *testing.T) {
	tests := []struct {
		name string
		face string
	}{
		{"position only", "f 1 2 3"},
		{"position and uv", "f 1/1 2/2 3/3"},
		{"position and normal", "f 1//1 2//1 3//1"},
		{"negative indices", "f -3 -2 -1"},
	}
	base := "v 0 0 0\nv 1 0 0\nv 0 0 1\nvt 0 0\nvt 1 0\nvt 0 1\nvn 0 1 0\n"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mesh, err := ParseObj(strings.NewReader(base + tt.face + "\n"))
			if err != nil {
				t.Fatalf("ParseObj failed: %v", err)
			}
			if mesh.TriangleCount() != 1 {
				t.Errorf("got %d triangles, want 1", mesh.TriangleCount())
			}
		})
	}
}

func TestParseObjErrors(t *testing.T) {
	tests := []struct {
		name string
		obj  string
	}{
		{"no faces", "v 0 0 0\n"},
		{"face index out of range", "v 0 0 0\nv 1 0 0\nf 1 2 9\n"},
		{"bad vertex component", "v 0 zero 0\nv 1 0 0\nv 0 0 1\nf 1 2 3\n"},
		{"face with two corners", "v 0 0 0\nv 1 0 0\nf 1 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseObj(strings.NewReader(tt.obj)); err == nil {
				t.Error("ParseObj accepted malformed input")
			}
		})
	}
}

func TestParseObjIgnoresUnknownRecords(t *testing.T) {
	obj := "o thing\ng group\nusemtl rusty\ns off\n" + quadObj
	mesh, err := ParseObj(strings.NewReader(obj))
	if err != nil {
		t.Fatalf("ParseObj failed: %v", err)
	}
	if mesh.TriangleCount() != 2 {
		t.Errorf("got %d triangles, want 2", mesh.TriangleCount())
	}
}

func TestParsedMeshHasSaneGeometry(t *testing.T) {
	mesh, err := ParseObj(strings.NewReader(quadObj))
	if err != nil {
		t.Fatalf("ParseObj failed: %v", err)
	}
	var area float64
	for i := 0; i < mesh.TriangleCount(); i++ {
		tri := mesh.Triangle(i)
		area += tri.Area()
	}
	if math.Abs(area-1.0) > 1e-12 {
		t.Errorf("total area = %v, want 1.0", area)
	}
}
