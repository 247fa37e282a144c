package driver

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/ndi-tracker/ndi-driver/pkg/tool"
)

// ToolSnapshot is one tool's published state for a single tick.
type ToolSnapshot struct {
	Name        string          `cbor:"name"`
	PortHandle  string          `cbor:"port_handle"`
	MarkerPose  tool.Pose       `cbor:"marker_pose"`
	TooltipPose tool.Pose       `cbor:"tooltip_pose"`
	ErrorRMS    float64         `cbor:"error_rms"`
	FrameNumber uint32          `cbor:"frame_number"`
}

// StrayMarkerSnapshot is one published stray-marker row.
type StrayMarkerSnapshot struct {
	Occupied bool    `cbor:"occupied"`
	InVolume bool    `cbor:"in_volume"`
	X        float64 `cbor:"x"`
	Y        float64 `cbor:"y"`
	Z        float64 `cbor:"z"`
}

// Snapshot is the full per-tick publication: every tracked tool's pose
// plus the stray-marker table, marshaled as a single CBOR blob. The
// teacher's UART command path used CBOR to encode an outgoing
// map-shaped message (helpers.go); here the same library encodes this
// record instead, since there's no outgoing UART command in an ASCII
// wire protocol for it to serve.
type Snapshot struct {
	Tools        []ToolSnapshot        `cbor:"tools"`
	StrayMarkers []StrayMarkerSnapshot `cbor:"stray_markers,omitempty"`
}

// Encode marshals the snapshot to CBOR.
func (s Snapshot) Encode() ([]byte, error) {
	b, err := cbor.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("driver: marshal snapshot: %w", err)
	}
	return b, nil
}
