package stub

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
)

// AssetsExecutor produces placeholder media for every scene plus bgm and
// narration voices through the media store. Image prompts go through
// character-description substitution first.
type AssetsExecutor struct {
	media  ports.MediaStore
	logger *zap.Logger
}

// NewAssetsExecutor creates the stub asset executor.
func NewAssetsExecutor(media ports.MediaStore, logger *zap.Logger) *AssetsExecutor {
	return &AssetsExecutor{media: media, logger: logger}
}

// Stage (ports.StageExecutor interface)
func (e *AssetsExecutor) Stage() domain.Stage { return domain.StageAssets }

// Execute (ports.StageExecutor interface)
func (e *AssetsExecutor) Execute(ctx context.Context, run *domain.Run, reporter ports.StageReporter) error {
	plot := run.Artifacts.Plot
	if plot == nil {
		return fmt.Errorf("no plot to generate assets from")
	}

	total := len(plot.Scenes)
	assets := make([]domain.SceneAsset, 0, total)

	// Scene images spread over 0.30 -> 0.40; each finished image is
	// reported so clients see partial results while the stage runs.
	for i := range plot.Scenes {
		scene := &plot.Scenes[i]
		prompt := plot.RenderedPrompt(scene)

		key := fmt.Sprintf("%s/scene-%s-g%d.png", run.ID, scene.SceneID, run.Generation)
		url, err := e.media.Put(ctx, key, PlaceholderImage(prompt), "image/png")
		if err != nil {
			return fmt.Errorf("failed to store image for scene %s: %w", scene.SceneID, err)
		}

		assets = append(assets, domain.SceneAsset{
			SceneID:     scene.SceneID,
			SceneNumber: i + 1,
			ImageURL:    url,
			ImagePrompt: scene.ImagePrompt,
			Narration:   scene.Text,
		})

		fraction := domain.ProgressAssetStart +
			(domain.ProgressImagesDone-domain.ProgressAssetStart)*float64(i+1)/float64(total)
		snapshot := append([]domain.SceneAsset(nil), assets...)
		if err := reporter.Report(ctx, fraction, fmt.Sprintf("image %d/%d ready", i+1, total), func(a *domain.Artifacts) {
			a.Scenes = snapshot
		}); err != nil {
			return err
		}
	}

	bgmKey := fmt.Sprintf("%s/bgm-g%d.wav", run.ID, run.Generation)
	bgmURL, err := e.media.Put(ctx, bgmKey, PlaceholderAudio(plot.BGMPrompt), "audio/wav")
	if err != nil {
		return fmt.Errorf("failed to store bgm: %w", err)
	}
	if err := reporter.Report(ctx, domain.ProgressBGMDone, "bgm ready", func(a *domain.Artifacts) {
		a.BGM = &domain.BGMAsset{AudioURL: bgmURL, Prompt: plot.BGMPrompt}
	}); err != nil {
		return err
	}

	for i := range assets {
		voiceKey := fmt.Sprintf("%s/voice-%s-g%d.wav", run.ID, assets[i].SceneID, run.Generation)
		voiceURL, err := e.media.Put(ctx, voiceKey, PlaceholderAudio(run.Spec.VoiceID+assets[i].Narration), "audio/wav")
		if err != nil {
			return fmt.Errorf("failed to store voice for scene %s: %w", assets[i].SceneID, err)
		}
		assets[i].VoiceURL = voiceURL
	}

	final := append([]domain.SceneAsset(nil), assets...)
	return reporter.Report(ctx, domain.ProgressVoiceDone, "voices ready", func(a *domain.Artifacts) {
		a.Scenes = final
	})
}

// SceneImage (ports.AssetGenerator interface)
func (e *AssetsExecutor) SceneImage(ctx context.Context, run *domain.Run, prompt string) ([]byte, string, error) {
	return PlaceholderImage(prompt), "image/png", nil
}

// BGMTrack (ports.AssetGenerator interface)
func (e *AssetsExecutor) BGMTrack(ctx context.Context, run *domain.Run, prompt string) ([]byte, string, error) {
	return PlaceholderAudio(prompt), "audio/wav", nil
}
