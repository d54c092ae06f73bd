package geom

import (
	"math"
	"testing"
)

// quadMesh builds a unit quad in the XZ plane split into two triangles
// sharing the diagonal from (0,0,1) to (1,0,0).
func quadMesh() *Mesh {
	return &Mesh{
		Vertices: []Vertex{
			{Position: Vec3{0, 0, 0}, UV: Vec2{0, 0}},
			{Position: Vec3{1, 0, 0}, UV: Vec2{1, 0}},
			{Position: Vec3{1, 0, 1}, UV: Vec2{1, 1}},
			{Position: Vec3{0, 0, 1}, UV: Vec2{0, 1}},
		},
		Triangles: [][3]int{
			{0, 1, 3},
			{1, 2, 3},
		},
	}
}

func TestNearestSurfacePointProjects(t *testing.T) {
	idx := BuildSurfaceIndex(quadMesh(), IndexOptions{Tolerance: 0.5})

	sp, err := idx.NearestSurfacePoint(Vec3{0.25, 0.2, 0.25})
	if err != nil {
		t.Fatalf("NearestSurfacePoint failed: %v", err)
	}
	if sp.Tri != 0 {
		t.Errorf("resolved to triangle %d, want 0", sp.Tri)
	}
	want := Vec3{0.25, 0, 0.25}
	if !vecNear(sp.Position, want, 1e-9) {
		t.Errorf("position = %v, want %v", sp.Position, want)
	}
}

func TestNearestSurfacePointOutOfBounds(t *testing.T) {
	idx := BuildSurfaceIndex(quadMesh(), IndexOptions{Tolerance: 0.1})

	_, err := idx.NearestSurfacePoint(Vec3{0.5, 5, 0.5})
	if err != ErrOutOfBounds {
		t.Errorf("err = %v, want ErrOutOfBounds", err)
	}
}

func TestNearestSurfacePointEdgeTieBreak(t *testing.T) {
	idx := BuildSurfaceIndex(quadMesh(), IndexOptions{Tolerance: 0.5})

	// Directly above the shared diagonal: equidistant to both triangles.
	sp, err := idx.NearestSurfacePoint(Vec3{0.5, 0.1, 0.5})
	if err != nil {
		t.Fatalf("NearestSurfacePoint failed: %v", err)
	}
	if sp.Tri != 0 {
		t.Errorf("edge landing resolved to triangle %d, want lowest index 0", sp.Tri)
	}
}

func TestNearestSurfacePointIsDeterministic(t *testing.T) {
	idx := BuildSurfaceIndex(quadMesh(), IndexOptions{Tolerance: 0.5})
	queries := []Vec3{
		{0.5, 0.1, 0.5},
		{0.1, 0.05, 0.9},
		{0.99, 0.2, 0.01},
	}
	for _, q := range queries {
		first, err := idx.NearestSurfacePoint(q)
		if err != nil {
			t.Fatalf("query %v failed: %v", q, err)
		}
		for i := 0; i < 10; i++ {
			again, err := idx.NearestSurfacePoint(q)
			if err != nil {
				t.Fatalf("query %v failed: %v", q, err)
			}
			if again.Tri != first.Tri || again.Bary != first.Bary {
				t.Fatalf("query %v not stable: %+v vs %+v", q, first, again)
			}
		}
	}
}

func TestNearestSurfacePointAcrossRings(t *testing.T) {
	// A diagonal hit in a near grid ring must not shadow a closer triangle
	// that only shows up several rings farther out along one axis. With a
	// 4x4x4-cell grid over [0,4]^3 the diagonal triangle sits in cell
	// (2,2,2) at distance 2*sqrt(3) from the query, while the nearer one
	// sits on the x = 4 face, four rings out, at distance 3.1.
	mesh := &Mesh{
		Vertices: []Vertex{
			// Bounds anchors, referenced by no triangle.
			{Position: Vec3{0, 0, 0}},
			{Position: Vec3{4, 4, 4}},
			{Position: Vec3{2.9, 2.9, 2.9}},
			{Position: Vec3{2.99, 2.9, 2.9}},
			{Position: Vec3{2.9, 2.99, 2.9}},
			{Position: Vec3{4, 0.8, 0.8}},
			{Position: Vec3{4, 1.0, 0.85}},
			{Position: Vec3{4, 0.85, 1.0}},
		},
		Triangles: [][3]int{
			{2, 3, 4},
			{5, 6, 7},
		},
	}
	idx := BuildSurfaceIndex(mesh, IndexOptions{Tolerance: 5, TargetCellCount: 64})

	sp, err := idx.NearestSurfacePoint(Vec3{0.9, 0.9, 0.9})
	if err != nil {
		t.Fatalf("NearestSurfacePoint failed: %v", err)
	}
	if sp.Tri != 1 {
		t.Errorf("resolved to triangle %d, want nearest triangle 1", sp.Tri)
	}
}

func TestDegenerateTrianglesSkipped(t *testing.T) {
	mesh := quadMesh()
	// Zero-area sliver.
	mesh.Triangles = append(mesh.Triangles, [3]int{0, 1, 1})

	idx := BuildSurfaceIndex(mesh, IndexOptions{})
	if idx.DegenerateCount() != 1 {
		t.Errorf("DegenerateCount() = %d, want 1", idx.DegenerateCount())
	}

	// Lookups still work on the remaining coverage.
	if _, err := idx.NearestSurfacePoint(Vec3{0.25, 0.01, 0.25}); err != nil {
		t.Errorf("lookup after degenerate skip failed: %v", err)
	}
}

func TestNeighbors(t *testing.T) {
	idx := BuildSurfaceIndex(quadMesh(), IndexOptions{})

	sp, err := idx.NearestSurfacePoint(Vec3{0.25, 0, 0.25})
	if err != nil {
		t.Fatalf("NearestSurfacePoint failed: %v", err)
	}
	adj := idx.Neighbors(sp)
	if len(adj) != 1 || adj[0] != 1 {
		t.Errorf("Neighbors = %v, want [1]", adj)
	}
}

func TestDefaultTolerance(t *testing.T) {
	idx := BuildSurfaceIndex(quadMesh(), IndexOptions{})
	if got := idx.Tolerance(); math.Abs(got-0.05) > 1e-12 {
		t.Errorf("Tolerance() = %v, want 0.05 (5%% of max extent)", got)
	}
}
