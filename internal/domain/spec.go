package domain

// Mode selects the narrative shape of a run
type Mode string

const (
	ModeGeneral Mode = "general"
	ModeStory   Mode = "story"
	ModeAd      Mode = "ad"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeGeneral || m == ModeStory || m == ModeAd
}

// RunSpec holds the creation parameters of a run. It is immutable after
// creation; checkpoint edits apply to artifacts, never to the spec.
type RunSpec struct {
	Mode          Mode    `json:"mode"`
	Prompt        string  `json:"prompt"`
	NumCharacters int     `json:"num_characters"`
	NumCuts       int     `json:"num_cuts"`
	ArtStyle      string  `json:"art_style,omitempty"`
	MusicGenre    string  `json:"music_genre,omitempty"`
	VoiceID       string  `json:"voice_id,omitempty"`
	LoraStrength  float64 `json:"lora_strength,omitempty"`

	// ReviewMode gates every checkpoint: when false the pipeline runs
	// straight through without pausing.
	ReviewMode bool `json:"review_mode"`

	// Layout carries creation-time presentation overrides; zero fields fall
	// back to the defaults.
	Layout *LayoutConfig `json:"layout,omitempty"`

	Characters      []CharacterSpec `json:"characters,omitempty"`
	ReferenceImages []string        `json:"reference_images,omitempty"`

	// Stubs force the stub executor for a concern on this run regardless of
	// configured providers.
	Stubs StubFlags `json:"stubs"`
}

// CharacterSpec is a user-provided cast member for general/story modes.
type CharacterSpec struct {
	Name           string `json:"name"`
	Gender         string `json:"gender,omitempty"`
	Role           string `json:"role,omitempty"`
	Personality    string `json:"personality,omitempty"`
	Appearance     string `json:"appearance,omitempty"`
	ReferenceImage string `json:"reference_image,omitempty"`
}

// StubFlags select stub executors per concern for one run.
type StubFlags struct {
	Plot   bool `json:"plot,omitempty"`
	Image  bool `json:"image,omitempty"`
	Music  bool `json:"music,omitempty"`
	Voice  bool `json:"voice,omitempty"`
	Render bool `json:"render,omitempty"`
}

// Clone returns a deep copy of the spec.
func (s *RunSpec) Clone() *RunSpec {
	out := *s
	if s.Layout != nil {
		out.Layout = s.Layout.Clone()
	}
	out.Characters = append([]CharacterSpec(nil), s.Characters...)
	out.ReferenceImages = append([]string(nil), s.ReferenceImages...)
	return &out
}
