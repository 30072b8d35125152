package stub

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/domain"
)

func TestRenderExecutor(t *testing.T) {
	media := newMemMedia()
	exec := NewRenderExecutor(media, zap.NewNop())
	reporter := &fakeReporter{}

	run := assetRun()
	run.Artifacts.Scenes = []domain.SceneAsset{
		{SceneID: "s1", SceneNumber: 1, ImageURL: "mem://r1/scene-s1-g1.png"},
	}

	if err := exec.Execute(context.Background(), run, reporter); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if reporter.artifacts.VideoURL != "mem://r1/video-g2.mp4" {
		t.Errorf("video url = %q", reporter.artifacts.VideoURL)
	}
	if reporter.artifacts.ThumbnailURL != "mem://r1/thumbnail-g2.png" {
		t.Errorf("thumbnail url = %q", reporter.artifacts.ThumbnailURL)
	}
	if last := reporter.fractions[len(reporter.fractions)-1]; last != domain.ProgressRenderDone {
		t.Errorf("final fraction = %v, want %v", last, domain.ProgressRenderDone)
	}
}

func TestRenderExecutorGuards(t *testing.T) {
	exec := NewRenderExecutor(newMemMedia(), zap.NewNop())

	noPlot := &domain.Run{ID: "r1", Spec: baseSpec(), Generation: 1}
	if err := exec.Execute(context.Background(), noPlot, &fakeReporter{}); err == nil {
		t.Error("want error without a plot")
	}

	noAssets := assetRun()
	noAssets.Artifacts.Scenes = nil
	if err := exec.Execute(context.Background(), noAssets, &fakeReporter{}); err == nil {
		t.Error("want error without scene assets")
	}
}
