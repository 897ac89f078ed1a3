package tools

// Field documents one key of a tool's input or output mapping. Order is
// preserved when rendering.
type Field struct {
	Key         string `yaml:"key" json:"key"`
	Description string `yaml:"description" json:"description"`
}

// Descriptor is the immutable self-description a tool produces on demand.
// It is rendered into the pinned warm-up prompt so the model learns the
// tool's name, purpose and input format.
type Descriptor struct {
	Name         string  `yaml:"name" json:"name"`
	Purpose      string  `yaml:"purpose" json:"purpose"`
	UsageHint    string  `yaml:"usage_hint" json:"usage_hint"`
	InputFormat  []Field `yaml:"input_format" json:"input_format"`
	OutputFormat []Field `yaml:"output_format" json:"output_format"`
}
