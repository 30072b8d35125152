package stub

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/aescanero/reelgen/internal/domain"
)

func completeArtifacts() *domain.Artifacts {
	return &domain.Artifacts{
		Plot: &domain.Plot{
			Title: "Fox",
			Scenes: []domain.Scene{
				{SceneID: "s1", DurationMS: 3000},
				{SceneID: "s2", DurationMS: 4000},
			},
		},
		Scenes: []domain.SceneAsset{
			{SceneID: "s1", ImageURL: "mem://r1/s1.png"},
			{SceneID: "s2", ImageURL: "mem://r1/s2.png"},
		},
		BGM:          &domain.BGMAsset{AudioURL: "mem://r1/bgm.wav"},
		VideoURL:     "mem://r1/video.mp4",
		ThumbnailURL: "mem://r1/thumb.png",
	}
}

func checkByName(report *domain.QAReport, name string) *domain.QACheck {
	for i := range report.Checks {
		if report.Checks[i].Name == name {
			return &report.Checks[i]
		}
	}
	return nil
}

func TestEvaluatePasses(t *testing.T) {
	report := Evaluate(completeArtifacts())
	if !report.Passed {
		t.Fatalf("report failed: %+v", report.Checks)
	}
	for _, check := range report.Checks {
		if !check.Passed {
			t.Errorf("check %s failed on complete artifacts", check.Name)
		}
	}
	if len(report.Checks) != 5 {
		t.Errorf("checks = %d, want 5", len(report.Checks))
	}
}

func TestEvaluateFailures(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(a *domain.Artifacts)
		failCheck string
	}{
		{
			name:      "missing plot",
			mutate:    func(a *domain.Artifacts) { a.Plot = nil },
			failCheck: "plot_present",
		},
		{
			name:      "scene count mismatch",
			mutate:    func(a *domain.Artifacts) { a.Scenes = a.Scenes[:1] },
			failCheck: "scene_images",
		},
		{
			name:      "scene without image",
			mutate:    func(a *domain.Artifacts) { a.Scenes[1].ImageURL = "" },
			failCheck: "scene_images",
		},
		{
			name:      "missing bgm",
			mutate:    func(a *domain.Artifacts) { a.BGM = nil },
			failCheck: "bgm_present",
		},
		{
			name:      "missing video",
			mutate:    func(a *domain.Artifacts) { a.VideoURL = "" },
			failCheck: "video_present",
		},
		{
			name:      "scene too short",
			mutate:    func(a *domain.Artifacts) { a.Plot.Scenes[0].DurationMS = 100 },
			failCheck: "scene_durations",
		},
		{
			name:      "scene too long",
			mutate:    func(a *domain.Artifacts) { a.Plot.Scenes[1].DurationMS = 60000 },
			failCheck: "scene_durations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifacts := completeArtifacts()
			tt.mutate(artifacts)

			report := Evaluate(artifacts)
			if report.Passed {
				t.Fatal("report passed, want failure")
			}
			check := checkByName(report, tt.failCheck)
			if check == nil {
				t.Fatalf("check %s missing from report", tt.failCheck)
			}
			if check.Passed {
				t.Errorf("check %s passed, want failure", tt.failCheck)
			}
			if check.Detail == "" {
				t.Errorf("failed check %s has no detail", tt.failCheck)
			}
		})
	}
}

func TestQAExecutorWritesReport(t *testing.T) {
	exec := NewQAExecutor(zap.NewNop())
	reporter := &fakeReporter{}

	run := &domain.Run{ID: "r1", Spec: baseSpec(), Generation: 4}
	run.Artifacts = *completeArtifacts()

	if err := exec.Execute(context.Background(), run, reporter); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if reporter.artifacts.QAReport == nil {
		t.Fatal("no report written")
	}
	if !reporter.artifacts.QAReport.Passed {
		t.Errorf("report failed: %+v", reporter.artifacts.QAReport.Checks)
	}
	if last := reporter.fractions[len(reporter.fractions)-1]; last != domain.ProgressQADone {
		t.Errorf("final fraction = %v, want %v", last, domain.ProgressQADone)
	}
}
