// internal/story/builder.go
package story

import (
	"fmt"

	apperrors "github.com/Corphon/SceneNovel/internal/errors"
	"github.com/Corphon/SceneNovel/internal/models"
	"github.com/Corphon/SceneNovel/internal/utils"
)

// DefaultBackground is used until the author sets one.
const DefaultBackground = "https://images.unsplash.com/photo-1506744038136-46273834b3fb?auto=format&fit=crop&w=1200&q=80"

// template is the builder's running state. It is copied into every emitted
// snapshot and never shared with one.
type template struct {
	background models.Background
	stage      models.Stage
	characters []models.CharacterSprite
	path       string
	features   models.Features
}

// Builder turns a linear list of authoring commands into independent scene snapshots.
//
// Emitting commands (dialogue, narration, character changes, side effects) copy the
// running state, apply their change to the copy and append it. Setters (blur, stage,
// path, feature panels) change only the running state and show up from the next
// emitted scene on.
type Builder struct {
	scenes []models.SceneSnapshot
	tmpl   template
	built  bool
	err    error // first invalid argument, reported by Build
	logger *utils.Logger
}

// NewBuilder creates an empty builder using the global logger.
func NewBuilder() *Builder {
	return &Builder{
		tmpl: template{
			background: models.Background{URL: DefaultBackground},
		},
		logger: utils.GetLogger(),
	}
}

// WithLogger replaces the builder's logger.
func (b *Builder) WithLogger(logger *utils.Logger) *Builder {
	b.logger = logger
	return b
}

// Len is the number of emitted scenes, i.e. the index the next scene will get.
func (b *Builder) Len() int {
	return len(b.scenes)
}

// SceneAt returns a copy of an already emitted scene.
func (b *Builder) SceneAt(index int) (models.SceneSnapshot, bool) {
	if index < 0 || index >= len(b.scenes) {
		return models.SceneSnapshot{}, false
	}
	return b.scenes[index].Clone(), true
}

// ReplaceAt swaps an already emitted scene for a copy of scene. It is the way to
// attach a choice list whose targets were only known after the branches were written.
func (b *Builder) ReplaceAt(index int, scene models.SceneSnapshot) error {
	if b.built {
		return apperrors.NewConflictError("story already built", nil)
	}
	if index < 0 || index >= len(b.scenes) {
		return apperrors.NewValidationError(
			fmt.Sprintf("replace index %d outside 0..%d", index, len(b.scenes)-1), nil)
	}
	b.scenes[index] = scene.Clone()
	return nil
}

// SetCharacters registers characters. Registering a known name again resets its sprite.
func (b *Builder) SetCharacters(defs ...models.CharacterDefinition) {
	for _, def := range defs {
		anim := models.AnimationNone
		if def.Animated {
			anim = models.AnimationIdle
		}
		sprite := models.CharacterSprite{
			Name:      def.Name,
			ImageURL:  def.ImageURL,
			Position:  models.PositionCenter,
			Animation: anim,
			Scale:     1.0,
		}
		if i := b.characterIndex(def.Name); i >= 0 {
			b.tmpl.characters[i] = sprite
			continue
		}
		b.tmpl.characters = append(b.tmpl.characters, sprite)
	}
}

func (b *Builder) characterIndex(name string) int {
	for i, c := range b.tmpl.characters {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// SetCamera toggles the camera panel from the next scene on.
func (b *Builder) SetCamera(show bool) { b.tmpl.features.ShowCamera = show }

// SetVoice toggles the voice capture panel from the next scene on.
func (b *Builder) SetVoice(show bool) { b.tmpl.features.ShowVoice = show }

// SetMotors toggles the motor panel from the next scene on.
func (b *Builder) SetMotors(show bool) { b.tmpl.features.ShowMotors = show }

// SetRobot toggles the robot panel from the next scene on.
func (b *Builder) SetRobot(show bool) { b.tmpl.features.ShowRobot = show }

// SetBackgroundBlur sets the background blur in pixels.
func (b *Builder) SetBackgroundBlur(px int) {
	if px < 0 {
		b.fail("background blur %d is negative", px)
		return
	}
	b.tmpl.background.BlurPx = px
}

// SetStage sets the stage layer; an empty URL removes it.
func (b *Builder) SetStage(url string) { b.tmpl.stage.URL = url }

// SetStageBlur sets the stage blur in pixels.
func (b *Builder) SetStageBlur(px int) {
	if px < 0 {
		b.fail("stage blur %d is negative", px)
		return
	}
	b.tmpl.stage.BlurPx = px
}

// SetPath tags the following scenes with a branch path; "" returns to the main path.
func (b *Builder) SetPath(path string) { b.tmpl.path = path }

// SetBackground changes the background image and label.
func (b *Builder) SetBackground(url, label string) {
	scene := b.clone()
	scene.Background.URL = url
	scene.Background.Label = label
	scene.Note = "Background: " + orDefault(label, "custom")
	b.push(scene)
}

// ShowCharacter makes a character visible at position.
func (b *Builder) ShowCharacter(name string, position models.Position) {
	ok := b.checkPosition(position)
	b.updateCharacter(fmt.Sprintf("Show %s at %s", name, position), name, func(c *models.CharacterSprite) {
		if ok {
			c.Position = position
		}
		c.Visible = true
	})
}

// HideCharacter hides a character.
func (b *Builder) HideCharacter(name string) {
	b.updateCharacter("Hide "+name, name, func(c *models.CharacterSprite) {
		c.Visible = false
	})
}

// MoveCharacter moves a character without changing its visibility.
func (b *Builder) MoveCharacter(name string, position models.Position) {
	ok := b.checkPosition(position)
	b.updateCharacter(fmt.Sprintf("Move %s to %s", name, position), name, func(c *models.CharacterSprite) {
		if ok {
			c.Position = position
		}
	})
}

// ChangeCharacterSprite swaps the character's image, e.g. for another expression.
func (b *Builder) ChangeCharacterSprite(name, imageURL string) {
	b.updateCharacter(fmt.Sprintf("Change %s sprite", name), name, func(c *models.CharacterSprite) {
		c.ImageURL = imageURL
	})
}

// SetCharacterAnimation sets the looping animation; "" means none.
func (b *Builder) SetCharacterAnimation(name string, animation models.Animation) {
	note := fmt.Sprintf("%s animation: %s", name, orDefault(string(animation), "none"))
	anim, ok := models.ParseAnimation(string(animation))
	if !ok {
		b.fail("unknown animation %q for %s", animation, name)
	}
	b.updateCharacter(note, name, func(c *models.CharacterSprite) {
		if ok {
			c.Animation = anim
		}
	})
}

// SetCharacterScale sets the sprite scale, 1.0 being natural size.
func (b *Builder) SetCharacterScale(name string, scale float64) {
	if scale <= 0 {
		b.fail("scale %g for %s must be positive", scale, name)
	}
	b.updateCharacter(fmt.Sprintf("%s scale: %g", name, scale), name, func(c *models.CharacterSprite) {
		if scale > 0 {
			c.Scale = scale
		}
	})
}

// Dialogue adds a spoken line.
func (b *Builder) Dialogue(speaker, text string) {
	scene := b.clone()
	scene.Speaker = speaker
	scene.Text = text
	scene.Note = fmt.Sprintf("%s: %s", speaker, excerpt(text))
	b.push(scene)
}

// Narration adds a line without a speaker.
func (b *Builder) Narration(text string) {
	scene := b.clone()
	scene.Text = text
	scene.Note = "Narration: " + excerpt(text)
	b.push(scene)
}

// RequestInput asks the player for text stored in variableName.
func (b *Builder) RequestInput(prompt, variableName string) {
	scene := b.clone()
	scene.InputRequest = &models.InputRequest{Prompt: prompt, VariableName: variableName}
	scene.Note = "Input: " + variableName
	b.push(scene)
}

// Continue emits a plain copy of the running state, e.g. the scene shown right
// after an input prompt.
func (b *Builder) Continue() {
	scene := b.clone()
	scene.Note = "Continuing story"
	b.push(scene)
}

// SendMotorCommand moves one servo when the scene is shown.
func (b *Builder) SendMotorCommand(motorID, degrees int) {
	b.SendMotorCommands(models.MotorCommand{MotorID: motorID, PositionDegrees: degrees})
}

// SendMotorCommands moves several servos when the scene is shown.
func (b *Builder) SendMotorCommands(cmds ...models.MotorCommand) {
	scene := b.clone()
	for _, cmd := range cmds {
		if cmd.MotorID < 0 || cmd.PositionDegrees < 0 || cmd.PositionDegrees > 360 {
			b.fail("motor command %d → %d° out of range", cmd.MotorID, cmd.PositionDegrees)
		}
		scene.MotorCommands = append(scene.MotorCommands, cmd)
	}
	if len(cmds) == 1 {
		scene.Note = fmt.Sprintf("Motor %d → %d°", cmds[0].MotorID, cmds[0].PositionDegrees)
	} else {
		scene.Note = fmt.Sprintf("Motors: %d commands", len(cmds))
	}
	b.push(scene)
}

// SendRobotPose sends a pose to the robot when the scene is shown.
func (b *Builder) SendRobotPose(pose models.RobotPose) {
	scene := b.clone()
	scene.RobotPose = &pose
	scene.Note = "Robot pose command"
	b.push(scene)
}

// PlaySound plays an audio file when the scene is shown.
func (b *Builder) PlaySound(audioFile string) {
	scene := b.clone()
	scene.AudioFile = audioFile
	scene.Note = "Audio: " + audioFile
	b.push(scene)
}

// AddChoice appends a choice to the most recently emitted scene. The target is
// only checked by Build.
func (b *Builder) AddChoice(text string, targetIndex int) {
	if len(b.scenes) == 0 {
		b.logger.Warn("choice added before any scene", map[string]interface{}{"text": text})
		return
	}
	last := &b.scenes[len(b.scenes)-1]
	last.Choices = append(last.Choices, models.Choice{Text: text, TargetIndex: targetIndex})
}

// Build checks every choice target and returns the finished graph. The graph owns
// its own copies: later builder calls do not change it.
func (b *Builder) Build() (*Graph, error) {
	b.built = true

	if b.err != nil {
		return nil, b.err
	}

	count := len(b.scenes)
	for i, scene := range b.scenes {
		for j, choice := range scene.Choices {
			if choice.TargetIndex < 0 || choice.TargetIndex >= count {
				return nil, apperrors.NewBrokenReferenceError(&apperrors.BrokenReferenceError{
					SceneIndex:  i,
					ChoiceIndex: j,
					TargetIndex: choice.TargetIndex,
					SceneCount:  count,
				})
			}
		}
	}

	scenes := make([]models.SceneSnapshot, count)
	for i, scene := range b.scenes {
		scenes[i] = scene.Clone()
	}

	b.logger.Info("story built", map[string]interface{}{
		"scenes": count,
	})
	return newGraph(scenes), nil
}

// clone copies the running state into a fresh snapshot.
func (b *Builder) clone() models.SceneSnapshot {
	characters := make([]models.CharacterSprite, len(b.tmpl.characters))
	copy(characters, b.tmpl.characters)

	return models.SceneSnapshot{
		Background: b.tmpl.background,
		Stage:      b.tmpl.stage,
		Characters: characters,
		Features:   b.tmpl.features,
		Path:       b.tmpl.path,
	}
}

// push appends scene and carries its background and sprites forward.
func (b *Builder) push(scene models.SceneSnapshot) {
	b.scenes = append(b.scenes, scene)
	b.tmpl.background.URL = scene.Background.URL
	b.tmpl.background.Label = scene.Background.Label
	b.tmpl.characters = make([]models.CharacterSprite, len(scene.Characters))
	copy(b.tmpl.characters, scene.Characters)
}

// updateCharacter emits a scene with fn applied to the named sprite. Unknown
// names still emit the scene so indices stay predictable; callers validate
// their arguments before calling so a bad value fails regardless of the name.
func (b *Builder) updateCharacter(note, name string, fn func(*models.CharacterSprite)) {
	scene := b.clone()
	for i := range scene.Characters {
		if scene.Characters[i].Name == name {
			fn(&scene.Characters[i])
			break
		}
	}
	scene.Note = note
	b.push(scene)
}

func (b *Builder) checkPosition(p models.Position) bool {
	if !p.Valid() {
		b.fail("unknown position %q", p)
		return false
	}
	return true
}

func (b *Builder) fail(format string, args ...interface{}) {
	if b.err == nil {
		b.err = apperrors.NewValidationError(
			fmt.Sprintf("scene %d: %s", len(b.scenes), fmt.Sprintf(format, args...)), nil)
	}
}

func excerpt(text string) string {
	r := []rune(text)
	if len(r) <= 30 {
		return text
	}
	return string(r[:30]) + "..."
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
