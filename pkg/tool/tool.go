// Package tool holds the tracked-object data model (identity and live
// pose of one tool) and the registry that owns Tool storage, keyed by
// serial number and, once assigned, by port handle.
package tool

// MainType is the 2-hex-digit device category code from PHINF.
type MainType string

const (
	MainTypeReference  MainType = "01"
	MainTypeProbe      MainType = "02"
	MainTypeButtonBox  MainType = "03"
	MainTypeSoftware   MainType = "04"
	MainTypeCArm       MainType = "0A"
)

// Vector3 is a 3-D coordinate or offset, millimetres unless noted.
type Vector3 struct {
	X, Y, Z float64
}

// Add returns the element-wise sum of v and o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Quaternion is scalar-first (w, x, y, z).
type Quaternion struct {
	W, X, Y, Z float64
}

// Pose is a rigid 3-D frame: unit quaternion plus translation, with a
// validity flag reflecting whether the last TX reply carried numeric
// data for the owning tool.
type Pose struct {
	Orientation Quaternion
	Translation Vector3
	Valid       bool
}

// Tool is the identity and live pose of one tracked object.
type Tool struct {
	Name           string
	SerialNumber   string
	DefinitionPath string
	PortHandle     string
	MainType       MainType
	ManufacturerID string
	ToolRevision   string
	PartNumber     string
	TooltipOffset  Vector3

	TooltipPose Pose
	MarkerPose  Pose
	ErrorRMS    float64
	FrameNumber uint32
}

// ApplyFrame updates MarkerPose and TooltipPose from a freshly decoded
// rotation/translation pair and marks both valid. TooltipPose's
// translation is the marker translation plus the rotated tooltip
// offset (spec.md §8 invariant 3); orientation is shared since the
// spec applies no rotation to the tooltip offset's own frame.
func (t *Tool) ApplyFrame(orientation Quaternion, rot [3][3]float64, translation Vector3, errorRMS float64, frameNumber uint32) {
	t.MarkerPose = Pose{Orientation: orientation, Translation: translation, Valid: true}

	offset := rotate(rot, t.TooltipOffset)
	t.TooltipPose = Pose{
		Orientation: orientation,
		Translation: translation.Add(offset),
		Valid:       true,
	}
	t.ErrorRMS = errorRMS
	t.FrameNumber = frameNumber
}

// Invalidate marks both poses invalid, leaving the last good
// translation/orientation in place per spec.md §3's invariant.
func (t *Tool) Invalidate() {
	t.MarkerPose.Valid = false
	t.TooltipPose.Valid = false
}

func rotate(r [3][3]float64, v Vector3) Vector3 {
	return Vector3{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z,
	}
}
