package orchestrator

import (
	"errors"
	"strings"
	"testing"

	"github.com/aescanero/reelgen/internal/domain"
)

func validSpec() domain.RunSpec {
	return domain.RunSpec{
		Mode:   domain.ModeGeneral,
		Prompt: "a cat travelling through space",
	}
}

func TestNormalizeDefaults(t *testing.T) {
	v := NewValidator()

	spec := validSpec()
	v.Normalize(&spec)

	if spec.NumCuts != 3 {
		t.Errorf("NumCuts = %d, want 3", spec.NumCuts)
	}
	if spec.NumCharacters != 1 {
		t.Errorf("NumCharacters = %d, want 1", spec.NumCharacters)
	}
	if spec.ArtStyle == "" || spec.MusicGenre == "" {
		t.Errorf("style defaults not applied: %q %q", spec.ArtStyle, spec.MusicGenre)
	}
	if spec.LoraStrength != 0.8 {
		t.Errorf("LoraStrength = %v, want 0.8", spec.LoraStrength)
	}
}

func TestNormalizeRosterWins(t *testing.T) {
	v := NewValidator()

	spec := validSpec()
	spec.NumCharacters = 1
	spec.Characters = []domain.CharacterSpec{
		{Name: "Mia"},
		{Name: "Rex"},
	}
	v.Normalize(&spec)

	if spec.NumCharacters != 2 {
		t.Errorf("NumCharacters = %d, want 2 (roster size)", spec.NumCharacters)
	}
}

func TestValidateSpec(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*domain.RunSpec)
		wantErr bool
	}{
		{"valid", func(s *domain.RunSpec) {}, false},
		{"story mode", func(s *domain.RunSpec) { s.Mode = domain.ModeStory }, false},
		{"ad mode", func(s *domain.RunSpec) { s.Mode = domain.ModeAd }, false},
		{"unknown mode", func(s *domain.RunSpec) { s.Mode = "documentary" }, true},
		{"empty mode", func(s *domain.RunSpec) { s.Mode = "" }, true},
		{"blank prompt", func(s *domain.RunSpec) { s.Prompt = "   " }, true},
		{"oversized prompt", func(s *domain.RunSpec) { s.Prompt = strings.Repeat("a", MaxPromptBytes+1) }, true},
		{"too many characters", func(s *domain.RunSpec) { s.NumCharacters = 4 }, true},
		{"negative characters", func(s *domain.RunSpec) { s.NumCharacters = -1 }, true},
		{"zero characters", func(s *domain.RunSpec) { s.NumCharacters = 0 }, false},
		{"too many cuts", func(s *domain.RunSpec) { s.NumCuts = 11 }, true},
		{"zero cuts", func(s *domain.RunSpec) { s.NumCuts = 0 }, true},
		{"lora above one", func(s *domain.RunSpec) { s.LoraStrength = 1.5 }, true},
		{"nameless character", func(s *domain.RunSpec) {
			s.Characters = []domain.CharacterSpec{{Name: " "}}
		}, true},
		{"bad gender", func(s *domain.RunSpec) {
			s.Characters = []domain.CharacterSpec{{Name: "Mia", Gender: "robot"}}
		}, true},
		{"negative font size", func(s *domain.RunSpec) {
			s.Layout = &domain.LayoutConfig{TitleFontSize: -1}
		}, true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			spec.NumCuts = 3
			spec.NumCharacters = 1
			tt.modify(&spec)

			err := v.Validate(&spec)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, domain.ErrValidation) {
					t.Errorf("error %v is not ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidatePlot(t *testing.T) {
	base := func() *domain.Plot {
		return &domain.Plot{
			Title: "Space Cat",
			Scenes: []domain.Scene{
				{SceneID: "s1", Text: "Liftoff.", DurationMS: 3000},
				{SceneID: "s2", Text: "Orbit.", DurationMS: 3000},
			},
			Characters: []domain.Character{{CharID: "c1", Name: "Mia"}},
		}
	}

	tests := []struct {
		name    string
		modify  func(*domain.Plot)
		wantErr bool
	}{
		{"valid", func(p *domain.Plot) {}, false},
		{"no title", func(p *domain.Plot) { p.Title = "" }, true},
		{"no scenes", func(p *domain.Plot) { p.Scenes = nil }, true},
		{"missing scene id", func(p *domain.Plot) { p.Scenes[1].SceneID = "" }, true},
		{"duplicate scene id", func(p *domain.Plot) { p.Scenes[1].SceneID = "s1" }, true},
		{"negative duration", func(p *domain.Plot) { p.Scenes[0].DurationMS = -1 }, true},
		{"duplicate char id", func(p *domain.Plot) {
			p.Characters = append(p.Characters, domain.Character{CharID: "c1", Name: "Rex"})
		}, true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plot := base()
			tt.modify(plot)

			err := v.ValidatePlot(plot)
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	if err := v.ValidatePlot(nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("nil plot: got %v, want ErrValidation", err)
	}
}
