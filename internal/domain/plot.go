package domain

import (
	"fmt"
	"strings"
)

// Plot is the narrative artifact produced by the plot stage and edited at
// the plot checkpoint.
type Plot struct {
	Title      string      `json:"title"`
	BGMPrompt  string      `json:"bgm_prompt"`
	Characters []Character `json:"characters,omitempty"`
	Scenes     []Scene     `json:"scenes"`
}

// DefaultSceneDurationMS is the cut length a scene gets when none is set.
const DefaultSceneDurationMS = 3000

// Scene is one ordered cut of the video. Scene order is significant: the
// order in a confirmed plot is the order rendered.
type Scene struct {
	SceneID     string `json:"scene_id"`
	ImagePrompt string `json:"image_prompt"`
	Text        string `json:"text"`
	Speaker     string `json:"speaker,omitempty"`
	DurationMS  int    `json:"duration_ms"`
}

// Character is a cast member referenced from scene prompts through a
// substitution token (see CharToken).
type Character struct {
	CharID      string `json:"char_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CharToken is the placeholder a scene prompt uses to pull in a character's
// current description at generation time. Edits to a description therefore
// reach every scene on the next generation, never retroactively.
func CharToken(charID string) string {
	return fmt.Sprintf("{{char:%s}}", charID)
}

// SceneID returns the id of the n-th scene (1-based) produced by the given
// dispatch generation. The first plot gets s1..sN; regenerated plots carry
// the generation so stale scene ids from a discarded plot never match.
func SceneID(n, generation int) string {
	if generation <= 1 {
		return fmt.Sprintf("s%d", n)
	}
	return fmt.Sprintf("s%d-g%d", n, generation)
}

// Scene returns the scene with the given id, or nil.
func (p *Plot) Scene(sceneID string) *Scene {
	for i := range p.Scenes {
		if p.Scenes[i].SceneID == sceneID {
			return &p.Scenes[i]
		}
	}
	return nil
}

// Character returns the character with the given id, or nil.
func (p *Plot) Character(charID string) *Character {
	for i := range p.Characters {
		if p.Characters[i].CharID == charID {
			return &p.Characters[i]
		}
	}
	return nil
}

// RenderedPrompt expands every character token in the scene's image prompt
// with the character's current description. Unknown tokens are left as-is.
func (p *Plot) RenderedPrompt(s *Scene) string {
	prompt := s.ImagePrompt
	for i := range p.Characters {
		c := &p.Characters[i]
		prompt = strings.ReplaceAll(prompt, CharToken(c.CharID), c.Description)
	}
	return prompt
}

// Clone returns a deep copy of the plot.
func (p *Plot) Clone() *Plot {
	if p == nil {
		return nil
	}
	out := *p
	out.Characters = append([]Character(nil), p.Characters...)
	out.Scenes = append([]Scene(nil), p.Scenes...)
	return &out
}
