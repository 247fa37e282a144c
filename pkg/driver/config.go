package driver

import "github.com/ndi-tracker/ndi-driver/pkg/tool"

// ToolConfig describes one tool the driver should register at
// startup, per SPEC_FULL.md §6. TooltipRotation is accepted for
// forward compatibility with config files written for richer tooltip
// frames, but the driver only ever applies TooltipOffset's
// translation (see SPEC_FULL.md §12); a non-zero TooltipRotation is
// surfaced as a status warning rather than silently dropped.
type ToolConfig struct {
	Name            string       `json:"name"`
	SerialNumber    string       `json:"serial_number"`
	DefinitionPath  string       `json:"definition,omitempty"`
	TooltipOffset   tool.Vector3 `json:"tooltip_offset,omitempty"`
	TooltipRotation tool.Vector3 `json:"tooltip_rotation,omitempty"`
}

// Config is the external configuration record a JSON (or similar)
// reader produces before constructing a Driver; parsing the file
// itself is out of scope (spec.md §1's out-of-scope list), same as
// serial I/O.
type Config struct {
	SerialPort    string `json:"serial_port,omitempty"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db"`
	TickPeriodMS  int    `json:"tick_period_ms"`

	// DefinitionPath is the ordered list of directories (spec.md §6's
	// definition-path) a tool's non-absolute ToolConfig.DefinitionPath
	// name is resolved against, first match wins.
	DefinitionPath []string     `json:"definition_path,omitempty"`
	Tools          []ToolConfig `json:"tools"`
}
