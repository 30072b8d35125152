package stub

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
)

// RenderExecutor composes the placeholder video and thumbnail from the
// confirmed plot and assets.
type RenderExecutor struct {
	media  ports.MediaStore
	logger *zap.Logger
}

// NewRenderExecutor creates the stub render executor.
func NewRenderExecutor(media ports.MediaStore, logger *zap.Logger) *RenderExecutor {
	return &RenderExecutor{media: media, logger: logger}
}

// Stage (ports.StageExecutor interface)
func (e *RenderExecutor) Stage() domain.Stage { return domain.StageRender }

// Execute (ports.StageExecutor interface)
func (e *RenderExecutor) Execute(ctx context.Context, run *domain.Run, reporter ports.StageReporter) error {
	plot := run.Artifacts.Plot
	if plot == nil {
		return fmt.Errorf("no plot to render")
	}
	if len(run.Artifacts.Scenes) == 0 {
		return fmt.Errorf("no scene assets to render")
	}

	if err := reporter.Report(ctx, 0.75, "compositing video", nil); err != nil {
		return err
	}

	videoKey := fmt.Sprintf("%s/video-g%d.mp4", run.ID, run.Generation)
	videoURL, err := e.media.Put(ctx, videoKey, PlaceholderVideo(plot.Title), "video/mp4")
	if err != nil {
		return fmt.Errorf("failed to store video: %w", err)
	}

	thumbKey := fmt.Sprintf("%s/thumbnail-g%d.png", run.ID, run.Generation)
	thumbURL, err := e.media.Put(ctx, thumbKey, PlaceholderThumbnail(plot.Title), "image/png")
	if err != nil {
		return fmt.Errorf("failed to store thumbnail: %w", err)
	}

	return reporter.Report(ctx, domain.ProgressRenderDone, "video ready", func(a *domain.Artifacts) {
		a.VideoURL = videoURL
		a.ThumbnailURL = thumbURL
	})
}
