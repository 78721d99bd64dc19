// internal/models/render.go
package models

// BackgroundView is the background layer as handed to the presentation adapter.
type BackgroundView struct {
	URL    string `json:"url"`
	Label  string `json:"label,omitempty"`
	BlurPx int    `json:"blur_px"`
}

// StageView is the stage layer; URL is empty when there is no stage.
type StageView struct {
	URL    string `json:"url,omitempty"`
	BlurPx int    `json:"blur_px"`
}

// CharacterView is a visible character.
type CharacterView struct {
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url"`
	Position  Position  `json:"position"`
	Animation Animation `json:"animation"`
	Scale     float64   `json:"scale"`
}

// ChoiceView is one selectable option; Index is what SelectChoice expects.
type ChoiceView struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// RenderDescriptor is produced by every navigator operation.
type RenderDescriptor struct {
	SceneIndex int            `json:"scene_index"`
	SceneCount int            `json:"scene_count"`
	Background BackgroundView `json:"background"`
	Stage      StageView      `json:"stage"`
	Characters []CharacterView `json:"characters"`
	Speaker    string         `json:"speaker,omitempty"`
	Text       string         `json:"text"`
	Meta       string         `json:"meta"`

	ShowCamera bool `json:"show_camera"`
	ShowVoice  bool `json:"show_voice"`
	ShowMotors bool `json:"show_motors"`
	ShowRobot  bool `json:"show_robot"`

	Choices     []ChoiceView `json:"choices,omitempty"`
	InputPrompt *string      `json:"input_prompt,omitempty"`
	NavEnabled  bool         `json:"nav_enabled"`
}

// HasInput reports whether the scene is waiting for free text.
func (r RenderDescriptor) HasInput() bool {
	return r.InputPrompt != nil
}
