package stub

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/domain"
	"github.com/aescanero/reelgen/internal/ports"
)

// Scene duration bounds a cut must stay inside to pass qa.
const (
	minSceneDurationMS = 500
	maxSceneDurationMS = 15000
)

// QAExecutor evaluates rule checks over the assembled artifacts and writes
// the verdict report. The orchestrator settles pass/fail from the report.
type QAExecutor struct {
	logger *zap.Logger
}

// NewQAExecutor creates the qa executor.
func NewQAExecutor(logger *zap.Logger) *QAExecutor {
	return &QAExecutor{logger: logger}
}

// Stage (ports.StageExecutor interface)
func (e *QAExecutor) Stage() domain.Stage { return domain.StageQA }

// Execute (ports.StageExecutor interface)
func (e *QAExecutor) Execute(ctx context.Context, run *domain.Run, reporter ports.StageReporter) error {
	if err := reporter.Report(ctx, 0.90, "running qa checks", nil); err != nil {
		return err
	}

	report := Evaluate(&run.Artifacts)

	message := "qa checks passed"
	if !report.Passed {
		message = "qa checks failed"
	}
	return reporter.Report(ctx, domain.ProgressQADone, message, func(a *domain.Artifacts) {
		a.QAReport = report
	})
}

// Evaluate runs every qa rule over the artifacts and returns the report.
func Evaluate(artifacts *domain.Artifacts) *domain.QAReport {
	report := &domain.QAReport{Passed: true}

	add := func(name string, passed bool, detail string) {
		if passed {
			detail = ""
		} else {
			report.Passed = false
		}
		report.Checks = append(report.Checks, domain.QACheck{Name: name, Passed: passed, Detail: detail})
	}

	plot := artifacts.Plot
	add("plot_present", plot != nil, "no plot artifact")

	imagesOK := plot != nil && len(artifacts.Scenes) == len(plot.Scenes)
	for _, asset := range artifacts.Scenes {
		if asset.ImageURL == "" {
			imagesOK = false
		}
	}
	add("scene_images", imagesOK, "one or more scenes have no image")

	add("bgm_present", artifacts.BGM != nil && artifacts.BGM.AudioURL != "", "no bgm artifact")
	add("video_present", artifacts.VideoURL != "", "no rendered video")

	durationsOK := plot != nil
	if plot != nil {
		for _, scene := range plot.Scenes {
			if scene.DurationMS < minSceneDurationMS || scene.DurationMS > maxSceneDurationMS {
				durationsOK = false
			}
		}
	}
	add("scene_durations", durationsOK,
		fmt.Sprintf("scene durations must be %d-%dms", minSceneDurationMS, maxSceneDurationMS))

	return report
}
