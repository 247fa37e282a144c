// Package tracking implements the TX tracking loop (component C9):
// issuing TX, parsing per-tool pose rows and the optional stray-marker
// block, and turning decoded quaternions into rotation matrices.
package tracking

import (
	"math"

	"github.com/ndi-tracker/ndi-driver/pkg/tool"
)

// Normalize returns q scaled to unit length. If q is the zero
// quaternion it is returned unchanged to avoid dividing by zero.
func Normalize(q tool.Quaternion) tool.Quaternion {
	norm := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if norm == 0 {
		return q
	}
	return tool.Quaternion{W: q.W / norm, X: q.X / norm, Y: q.Y / norm, Z: q.Z / norm}
}

// RotationMatrix builds the 3x3 rotation matrix for a unit quaternion
// (w, x, y, z).
func RotationMatrix(q tool.Quaternion) [3][3]float64 {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
}
