package driver

import "log"

// publishConnected surfaces Connected(port|""), per spec.md §6.
func (d *Driver) publishConnected(port string) {
	if d.redis == nil {
		return
	}
	if err := d.redis.WriteAndPublishString(KeyTrackerState, ChannelTrackerState, "connected_port", port); err != nil {
		log.Printf("ndi-driver: publish connected: %v", err)
	}
}

// publishTracking surfaces Tracking(bool).
func (d *Driver) publishTracking(on bool) {
	if d.redis == nil {
		return
	}
	value := "0"
	if on {
		value = "1"
	}
	if err := d.redis.WriteAndPublishString(KeyTrackerState, ChannelTrackerState, "is_tracking", value); err != nil {
		log.Printf("ndi-driver: publish tracking: %v", err)
	}
}

// publishToolsUpdated surfaces ToolsUpdated and refreshes the
// registry listing field.
func (d *Driver) publishToolsUpdated() {
	if d.redis == nil {
		return
	}
	names := ""
	for i, n := range d.registry.Names() {
		if i > 0 {
			names += ","
		}
		names += n
	}
	if err := d.redis.WriteAndPublishString(KeyTrackerState, ChannelToolsUpdated, "tool_names", names); err != nil {
		log.Printf("ndi-driver: publish tools updated: %v", err)
	}
}

// publishSnapshot encodes the current tool poses and stray-marker
// table as CBOR and publishes it as a single blob — the per-tick
// publication SPEC_FULL.md §10 adds CBOR for.
func (d *Driver) publishSnapshot() {
	if d.redis == nil {
		return
	}
	snap := Snapshot{}
	for _, t := range d.registry.All() {
		snap.Tools = append(snap.Tools, ToolSnapshot{
			Name:        t.Name,
			PortHandle:  t.PortHandle,
			MarkerPose:  t.MarkerPose,
			TooltipPose: t.TooltipPose,
			ErrorRMS:    t.ErrorRMS,
			FrameNumber: t.FrameNumber,
		})
	}
	if d.lastReply != nil {
		for _, row := range d.lastReply.StrayMarkers {
			if row[0] == 0 {
				continue
			}
			snap.StrayMarkers = append(snap.StrayMarkers, StrayMarkerSnapshot{
				Occupied: row[0] != 0,
				InVolume: row[1] != 0,
				X:        row[2],
				Y:        row[3],
				Z:        row[4],
			})
		}
	}

	encoded, err := snap.Encode()
	if err != nil {
		log.Printf("ndi-driver: encode snapshot: %v", err)
		return
	}
	if err := d.redis.WriteBytes(KeyTrackerState, "snapshot", encoded); err != nil {
		log.Printf("ndi-driver: write snapshot: %v", err)
		return
	}
	if err := d.redis.Publish(ChannelSnapshot, encoded); err != nil {
		log.Printf("ndi-driver: publish snapshot: %v", err)
	}
}
