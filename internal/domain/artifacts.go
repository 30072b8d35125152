package domain

// Artifacts holds every stage-produced output attached to a run. Each stage
// executor writes only its own artifacts; later stages may read earlier ones.
type Artifacts struct {
	Plot         *Plot         `json:"plot,omitempty"`
	Scenes       []SceneAsset  `json:"scenes,omitempty"`
	BGM          *BGMAsset     `json:"bgm,omitempty"`
	LayoutConfig *LayoutConfig `json:"layout_config,omitempty"`
	VideoURL     string        `json:"video_url,omitempty"`
	ThumbnailURL string        `json:"thumbnail_url,omitempty"`
	QAReport     *QAReport     `json:"qa_report,omitempty"`
	QARetryCount int           `json:"qa_retry_count,omitempty"`
}

// SceneAsset is the generated media for one scene.
type SceneAsset struct {
	SceneID     string `json:"scene_id"`
	SceneNumber int    `json:"scene_number"`
	ImageURL    string `json:"image_url"`
	ImagePrompt string `json:"image_prompt"`
	Narration   string `json:"narration"`
	VoiceURL    string `json:"voice_url,omitempty"`
}

// SceneAssetByID returns the asset for the given scene id, or nil.
func (a *Artifacts) SceneAssetByID(sceneID string) *SceneAsset {
	for i := range a.Scenes {
		if a.Scenes[i].SceneID == sceneID {
			return &a.Scenes[i]
		}
	}
	return nil
}

// BGMAsset is the run-level background music artifact.
type BGMAsset struct {
	AudioURL string `json:"audio_url"`
	Prompt   string `json:"prompt"`
}

// QAReport is the verdict of the QA stage over the assembled artifacts.
type QAReport struct {
	Passed bool      `json:"passed"`
	Checks []QACheck `json:"checks"`
	Notes  string    `json:"notes,omitempty"`
}

// QACheck is one named rule evaluated by the QA stage.
type QACheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Clone returns a deep copy of the artifacts.
func (a *Artifacts) Clone() *Artifacts {
	if a == nil {
		return nil
	}
	out := *a
	out.Plot = a.Plot.Clone()
	out.Scenes = append([]SceneAsset(nil), a.Scenes...)
	if a.BGM != nil {
		bgm := *a.BGM
		out.BGM = &bgm
	}
	out.LayoutConfig = a.LayoutConfig.Clone()
	if a.QAReport != nil {
		report := *a.QAReport
		report.Checks = append([]QACheck(nil), a.QAReport.Checks...)
		out.QAReport = &report
	}
	return &out
}
