package domain

// Ladder of global progress fractions the stages move through. Executors
// report fractions from their own segment; stage entry and regeneration
// reset to the stage baseline.
const (
	ProgressIdle        = 0.0
	ProgressPlotStart   = 0.10
	ProgressPlotDone    = 0.22
	ProgressPlotReview  = 0.25
	ProgressAssetStart  = 0.30
	ProgressImagesDone  = 0.40
	ProgressBGMDone     = 0.50
	ProgressVoiceDone   = 0.65
	ProgressAssetReview = 0.65
	ProgressLayoutReady = 0.68
	ProgressRenderStart = 0.70
	ProgressRenderDone  = 0.80
	ProgressQAStart     = 0.82
	ProgressQADone      = 0.98
	ProgressEnd         = 1.0
)

// StageBaseline is the fraction a run resets to when it enters (or
// regenerates) the given stage.
func StageBaseline(st Stage) float64 {
	switch st {
	case StagePlot:
		return ProgressPlotStart
	case StageAssets:
		return ProgressAssetStart
	case StageRender:
		return ProgressRenderStart
	case StageQA:
		return ProgressQAStart
	}
	return ProgressIdle
}

// ClampProgress bounds a reported fraction to [0,1]. Beyond this bound the
// engine does not second-guess executor-reported progress.
func ClampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
