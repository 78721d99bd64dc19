// internal/models/scene.go
package models

// Position is the horizontal slot a character occupies on the stage.
type Position string

const (
	PositionLeft   Position = "left"
	PositionCenter Position = "center"
	PositionRight  Position = "right"
)

// Valid reports whether p is one of the three stage slots.
func (p Position) Valid() bool {
	switch p {
	case PositionLeft, PositionCenter, PositionRight:
		return true
	}
	return false
}

// Animation is the looping animation applied to a character sprite.
type Animation string

const (
	AnimationNone   Animation = "none"
	AnimationIdle   Animation = "idle"
	AnimationShake  Animation = "shake"
	AnimationBounce Animation = "bounce"
	AnimationPulse  Animation = "pulse"
)

// ParseAnimation accepts the empty string as AnimationNone.
func ParseAnimation(s string) (Animation, bool) {
	if s == "" {
		return AnimationNone, true
	}
	a := Animation(s)
	switch a {
	case AnimationNone, AnimationIdle, AnimationShake, AnimationBounce, AnimationPulse:
		return a, true
	}
	return "", false
}

// Background is the bottom-most stage layer.
type Background struct {
	URL    string `json:"url"`
	Label  string `json:"label,omitempty"`
	BlurPx int    `json:"blur_px"`
}

// Stage is the optional layer drawn between the background and the characters.
// An empty URL means the layer is absent.
type Stage struct {
	URL    string `json:"url,omitempty"`
	BlurPx int    `json:"blur_px"`
}

// CharacterDefinition registers a character with the builder.
type CharacterDefinition struct {
	Name     string `json:"name" yaml:"name"`
	ImageURL string `json:"image_url" yaml:"image"`
	Animated bool   `json:"animated" yaml:"animated"`
}

// CharacterSprite is the per-scene state of one character.
type CharacterSprite struct {
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url"`
	Position  Position  `json:"position"`
	Visible   bool      `json:"visible"`
	Animation Animation `json:"animation"`
	Scale     float64   `json:"scale"`
}

// Choice sends the player to TargetIndex in the story graph.
type Choice struct {
	Text        string `json:"text"`
	TargetIndex int    `json:"target_index"`
}

// InputRequest asks the player for free text stored under VariableName.
type InputRequest struct {
	Prompt       string `json:"prompt"`
	VariableName string `json:"variable_name"`
}

// Features toggles the side panels shown alongside the stage.
type Features struct {
	ShowCamera bool `json:"show_camera"`
	ShowVoice  bool `json:"show_voice"`
	ShowMotors bool `json:"show_motors"`
	ShowRobot  bool `json:"show_robot"`
}

// Any reports whether at least one panel is visible.
func (f Features) Any() bool {
	return f.ShowCamera || f.ShowVoice || f.ShowMotors || f.ShowRobot
}

// SceneSnapshot is one frame of the story. Snapshots stored in a story graph are
// never modified; use Clone before changing a copy.
type SceneSnapshot struct {
	Background Background `json:"background"`
	Stage      Stage      `json:"stage"`
	// Characters is keyed by name and kept in registration order, which is also the
	// drawing order.
	Characters []CharacterSprite `json:"characters"`
	Speaker    string            `json:"speaker,omitempty"`
	Text       string            `json:"text"`
	Note       string            `json:"note,omitempty"`
	Features   Features          `json:"features"`

	Choices      []Choice      `json:"choices,omitempty"`
	InputRequest *InputRequest `json:"input_request,omitempty"`
	Path         string        `json:"path,omitempty"` // "" = main path

	MotorCommands []MotorCommand `json:"motor_commands,omitempty"`
	AudioFile     string         `json:"audio_file,omitempty"`
	RobotPose     *RobotPose     `json:"robot_pose,omitempty"`
}

// Clone returns a deep copy that shares no slices or pointers with s.
func (s SceneSnapshot) Clone() SceneSnapshot {
	out := s
	out.Characters = cloneSlice(s.Characters)
	out.Choices = cloneSlice(s.Choices)
	out.MotorCommands = cloneSlice(s.MotorCommands)
	if s.InputRequest != nil {
		req := *s.InputRequest
		out.InputRequest = &req
	}
	if s.RobotPose != nil {
		pose := *s.RobotPose
		out.RobotPose = &pose
	}
	return out
}

// Character looks up a sprite by name.
func (s SceneSnapshot) Character(name string) (CharacterSprite, bool) {
	for _, c := range s.Characters {
		if c.Name == name {
			return c, true
		}
	}
	return CharacterSprite{}, false
}

// HasChoices reports whether the scene offers a choice list.
func (s SceneSnapshot) HasChoices() bool {
	return len(s.Choices) > 0
}

// Gated reports whether free navigation is blocked on this scene.
func (s SceneSnapshot) Gated() bool {
	return s.HasChoices() || s.InputRequest != nil
}

// AccessibleWith reports whether the scene is reachable given the activated paths.
func (s SceneSnapshot) AccessibleWith(activePaths map[string]struct{}) bool {
	if s.Path == "" {
		return true
	}
	_, ok := activePaths[s.Path]
	return ok
}

// cloneSlice keeps nil as nil so "absent" survives a copy.
func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
