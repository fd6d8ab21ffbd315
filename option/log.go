package option

// LogOptions configures the log factory.
type LogOptions struct {
	Disabled     bool   `json:"disabled,omitempty"`
	Level        string `json:"level,omitempty"`
	Format       string `json:"format,omitempty"` // "" (text) or "json"
	Output       string `json:"output,omitempty"` // "", "stderr", "stdout" or a file path
	Timestamp    bool   `json:"timestamp,omitempty"`
	DisableColor bool   `json:"disable_color,omitempty"`
}
