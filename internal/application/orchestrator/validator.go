package orchestrator

import (
	"fmt"
	"strings"

	"github.com/aescanero/reelgen/internal/domain"
)

// Limits on run spec fields. Cut and character counts bound the work a
// single run can queue; prompts are capped to keep LLM requests sane.
const (
	MaxCharacters  = 3
	MinCuts        = 1
	MaxCuts        = 10
	MaxPromptBytes = 4000
)

// Validator validates run specs and checkpoint edit payloads
type Validator struct{}

// NewValidator creates a new spec validator
func NewValidator() *Validator {
	return &Validator{}
}

// Normalize fills spec defaults in place. A provided character roster wins
// over a mismatched num_characters.
func (v *Validator) Normalize(spec *domain.RunSpec) {
	if spec.NumCuts == 0 {
		spec.NumCuts = 3
	}
	if spec.NumCharacters == 0 && len(spec.Characters) == 0 {
		spec.NumCharacters = 1
	}
	if len(spec.Characters) > 0 {
		spec.NumCharacters = len(spec.Characters)
	}
	if spec.ArtStyle == "" {
		spec.ArtStyle = "pastel watercolor"
	}
	if spec.MusicGenre == "" {
		spec.MusicGenre = "ambient"
	}
	if spec.LoraStrength == 0 {
		spec.LoraStrength = 0.8
	}
}

// Validate validates a normalized run spec
func (v *Validator) Validate(spec *domain.RunSpec) error {
	if spec == nil {
		return fmt.Errorf("%w: spec is nil", domain.ErrValidation)
	}

	if !spec.Mode.Valid() {
		return fmt.Errorf("%w: unsupported mode %q", domain.ErrValidation, spec.Mode)
	}

	if strings.TrimSpace(spec.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", domain.ErrValidation)
	}
	if len(spec.Prompt) > MaxPromptBytes {
		return fmt.Errorf("%w: prompt exceeds %d bytes", domain.ErrValidation, MaxPromptBytes)
	}

	if spec.NumCharacters < 0 || spec.NumCharacters > MaxCharacters {
		return fmt.Errorf("%w: num_characters must be between 0 and %d", domain.ErrValidation, MaxCharacters)
	}

	if spec.NumCuts < MinCuts || spec.NumCuts > MaxCuts {
		return fmt.Errorf("%w: num_cuts must be between %d and %d", domain.ErrValidation, MinCuts, MaxCuts)
	}

	if spec.LoraStrength < 0 || spec.LoraStrength > 1 {
		return fmt.Errorf("%w: lora_strength must be between 0.0 and 1.0", domain.ErrValidation)
	}

	if len(spec.Characters) > MaxCharacters {
		return fmt.Errorf("%w: at most %d characters", domain.ErrValidation, MaxCharacters)
	}
	for i, ch := range spec.Characters {
		if err := v.validateCharacter(ch); err != nil {
			return fmt.Errorf("%w: character %d: %v", domain.ErrValidation, i+1, err)
		}
	}

	if layout := spec.Layout; layout != nil {
		if layout.TitleFontSize < 0 || layout.SubtitleFontSize < 0 {
			return fmt.Errorf("%w: font sizes must not be negative", domain.ErrValidation)
		}
	}

	return nil
}

// validateCharacter validates a single roster entry
func (v *Validator) validateCharacter(ch domain.CharacterSpec) error {
	if strings.TrimSpace(ch.Name) == "" {
		return fmt.Errorf("name is required")
	}

	switch ch.Gender {
	case "", "male", "female", "other":
	default:
		return fmt.Errorf("unsupported gender %q", ch.Gender)
	}

	return nil
}

// ValidatePlot validates an edited plot submitted at the plot checkpoint.
// Scene order in the payload is the order rendered, so the payload must be
// internally consistent before it replaces the artifact.
func (v *Validator) ValidatePlot(plot *domain.Plot) error {
	if plot == nil {
		return fmt.Errorf("%w: plot is required", domain.ErrValidation)
	}

	if strings.TrimSpace(plot.Title) == "" {
		return fmt.Errorf("%w: plot title is required", domain.ErrValidation)
	}

	if len(plot.Scenes) == 0 {
		return fmt.Errorf("%w: plot must have at least one scene", domain.ErrValidation)
	}
	if len(plot.Scenes) > MaxCuts {
		return fmt.Errorf("%w: plot must have at most %d scenes", domain.ErrValidation, MaxCuts)
	}

	sceneIDs := make(map[string]bool, len(plot.Scenes))
	for i, scene := range plot.Scenes {
		if scene.SceneID == "" {
			return fmt.Errorf("%w: scene %d: scene_id is required", domain.ErrValidation, i+1)
		}
		if sceneIDs[scene.SceneID] {
			return fmt.Errorf("%w: duplicate scene_id %q", domain.ErrValidation, scene.SceneID)
		}
		sceneIDs[scene.SceneID] = true

		if scene.DurationMS < 0 {
			return fmt.Errorf("%w: scene %q: duration_ms must not be negative", domain.ErrValidation, scene.SceneID)
		}
	}

	charIDs := make(map[string]bool, len(plot.Characters))
	for _, ch := range plot.Characters {
		if ch.CharID == "" {
			return fmt.Errorf("%w: character char_id is required", domain.ErrValidation)
		}
		if charIDs[ch.CharID] {
			return fmt.Errorf("%w: duplicate char_id %q", domain.ErrValidation, ch.CharID)
		}
		charIDs[ch.CharID] = true
	}

	return nil
}
