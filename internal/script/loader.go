// internal/script/loader.go
package script

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Corphon/SceneNovel/internal/assets"
	apperrors "github.com/Corphon/SceneNovel/internal/errors"
	"github.com/Corphon/SceneNovel/internal/models"
	"github.com/Corphon/SceneNovel/internal/story"
	"github.com/Corphon/SceneNovel/internal/utils"
)

// Script is a story written as YAML. Every entry of Steps is a mapping with exactly
// one key naming the builder command.
type Script struct {
	Title      string                       `yaml:"title"`
	Assets     AssetsSpec                   `yaml:"assets"`
	Characters []models.CharacterDefinition `yaml:"characters"`
	Steps      []map[string]yaml.Node       `yaml:"steps"`
}

// AssetsSpec configures where bare file names are looked up.
type AssetsSpec struct {
	BaseURL string `yaml:"base_url"`
}

type backgroundSpec struct {
	URL   string `yaml:"url"`
	Label string `yaml:"label"`
}

type placementSpec struct {
	Name     string          `yaml:"name"`
	Position models.Position `yaml:"position"`
}

type spriteSpec struct {
	Name  string `yaml:"name"`
	Image string `yaml:"image"`
}

type animateSpec struct {
	Name      string           `yaml:"name"`
	Animation models.Animation `yaml:"animation"`
}

type scaleSpec struct {
	Name  string  `yaml:"name"`
	Scale float64 `yaml:"scale"`
}

type dialogueSpec struct {
	Speaker string `yaml:"speaker"`
	Text    string `yaml:"text"`
}

type inputSpec struct {
	Prompt   string `yaml:"prompt"`
	Variable string `yaml:"variable"`
}

type choiceSpec struct {
	Text   string    `yaml:"text"`
	Target yaml.Node `yaml:"target"`
}

// pendingChoice is a choice whose target may be a label defined further down.
type pendingChoice struct {
	step   int
	scene  int
	text   string
	target yaml.Node
}

// Load reads and decodes a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: load %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("script: %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a script without building it.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, apperrors.NewValidationError("invalid story script", err)
	}
	return &s, nil
}

// LoadGraph loads and builds a script file in one go.
func LoadGraph(path string) (*story.Graph, *Script, error) {
	s, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	g, err := s.Build(utils.GetLogger())
	if err != nil {
		return nil, nil, fmt.Errorf("script: %s: %w", path, err)
	}
	return g, s, nil
}

// Build replays the steps against a story builder. Choice targets are resolved
// after the last step so they may name labels defined later.
func (s *Script) Build(logger *utils.Logger) (*story.Graph, error) {
	b := story.NewBuilder().WithLogger(logger)
	res := assets.NewResolver(s.Assets.BaseURL)

	defs := make([]models.CharacterDefinition, len(s.Characters))
	for i, def := range s.Characters {
		def.ImageURL = res.Sprite(def.ImageURL)
		defs[i] = def
	}
	b.SetCharacters(defs...)

	labels := make(map[string]int)
	var choices []pendingChoice

	for i, step := range s.Steps {
		n := i + 1
		if len(step) != 1 {
			return nil, stepError(n, "must have exactly one key, got %d", len(step))
		}
		for key, node := range step {
			switch key {
			case "label":
				var name string
				if err := decode(n, key, &node, &name); err != nil {
					return nil, err
				}
				if _, dup := labels[name]; dup {
					return nil, stepError(n, "label %q defined twice", name)
				}
				labels[name] = b.Len()
			case "choice":
				var c choiceSpec
				if err := decode(n, key, &node, &c); err != nil {
					return nil, err
				}
				if b.Len() == 0 {
					return nil, stepError(n, "choice %q before any scene", c.Text)
				}
				choices = append(choices, pendingChoice{step: n, scene: b.Len() - 1, text: c.Text, target: c.Target})
			default:
				if err := apply(b, res, n, key, &node); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := attachChoices(b, labels, choices); err != nil {
		return nil, err
	}

	start := time.Now()
	g, err := b.Build()
	utils.GetMetricsCollector().RecordDuration("story.build", time.Since(start))
	if err != nil {
		return nil, err
	}
	logger.Info("story script built", map[string]interface{}{
		"title":  s.Title,
		"scenes": g.Len(),
		"labels": len(labels),
	})
	return g, nil
}

// apply runs one non-branching step.
func apply(b *story.Builder, res assets.Resolver, n int, key string, node *yaml.Node) error {
	switch key {
	case "background":
		var v backgroundSpec
		if err := decode(n, key, node, &v); err != nil {
			return err
		}
		b.SetBackground(res.Background(v.URL), v.Label)
	case "background_blur":
		var px int
		if err := decode(n, key, node, &px); err != nil {
			return err
		}
		b.SetBackgroundBlur(px)
	case "stage":
		var url string
		if err := decode(n, key, node, &url); err != nil {
			return err
		}
		b.SetStage(res.Background(url))
	case "stage_blur":
		var px int
		if err := decode(n, key, node, &px); err != nil {
			return err
		}
		b.SetStageBlur(px)
	case "path":
		var tag string
		if err := decode(n, key, node, &tag); err != nil {
			return err
		}
		b.SetPath(tag)
	case "camera", "voice", "robot":
		var on bool
		if err := decode(n, key, node, &on); err != nil {
			return err
		}
		panelSetter(b, key)(on)
	case "show", "move":
		var v placementSpec
		if err := decode(n, key, node, &v); err != nil {
			return err
		}
		if v.Position == "" {
			v.Position = models.PositionCenter
		}
		if key == "show" {
			b.ShowCharacter(v.Name, v.Position)
		} else {
			b.MoveCharacter(v.Name, v.Position)
		}
	case "hide":
		var name string
		if err := decode(n, key, node, &name); err != nil {
			return err
		}
		b.HideCharacter(name)
	case "sprite":
		var v spriteSpec
		if err := decode(n, key, node, &v); err != nil {
			return err
		}
		b.ChangeCharacterSprite(v.Name, res.Sprite(v.Image))
	case "animate":
		var v animateSpec
		if err := decode(n, key, node, &v); err != nil {
			return err
		}
		b.SetCharacterAnimation(v.Name, v.Animation)
	case "scale":
		var v scaleSpec
		if err := decode(n, key, node, &v); err != nil {
			return err
		}
		b.SetCharacterScale(v.Name, v.Scale)
	case "dialogue":
		var v dialogueSpec
		if err := decode(n, key, node, &v); err != nil {
			return err
		}
		b.Dialogue(v.Speaker, v.Text)
	case "narration":
		var text string
		if err := decode(n, key, node, &text); err != nil {
			return err
		}
		b.Narration(text)
	case "input":
		var v inputSpec
		if err := decode(n, key, node, &v); err != nil {
			return err
		}
		if v.Variable == "" {
			return stepError(n, "input needs a variable name")
		}
		b.RequestInput(v.Prompt, v.Variable)
	case "continue":
		b.Continue()
	case "motor":
		var v models.MotorCommand
		if err := decode(n, key, node, &v); err != nil {
			return err
		}
		b.SendMotorCommand(v.MotorID, v.PositionDegrees)
	case "motors":
		// a bool toggles the panel, a list sends commands
		if node.Kind == yaml.ScalarNode {
			var on bool
			if err := decode(n, key, node, &on); err != nil {
				return err
			}
			b.SetMotors(on)
			return nil
		}
		var cmds []models.MotorCommand
		if err := decode(n, key, node, &cmds); err != nil {
			return err
		}
		if len(cmds) == 0 {
			return stepError(n, "motors list is empty")
		}
		b.SendMotorCommands(cmds...)
	case "pose":
		var pose models.RobotPose
		if err := decode(n, key, node, &pose); err != nil {
			return err
		}
		b.SendRobotPose(pose)
	case "sound":
		var file string
		if err := decode(n, key, node, &file); err != nil {
			return err
		}
		b.PlaySound(res.Audio(file))
	default:
		return stepError(n, "unknown command %q", key)
	}
	return nil
}

func panelSetter(b *story.Builder, key string) func(bool) {
	switch key {
	case "camera":
		return b.SetCamera
	case "voice":
		return b.SetVoice
	}
	return b.SetRobot
}

// attachChoices resolves every pending target and writes the choice lists back
// into their scenes.
func attachChoices(b *story.Builder, labels map[string]int, pending []pendingChoice) error {
	byScene := make(map[int][]models.Choice)
	for _, p := range pending {
		target, err := resolveTarget(p, labels)
		if err != nil {
			return err
		}
		byScene[p.scene] = append(byScene[p.scene], models.Choice{Text: p.text, TargetIndex: target})
	}

	scenes := make([]int, 0, len(byScene))
	for idx := range byScene {
		scenes = append(scenes, idx)
	}
	sort.Ints(scenes)

	for _, idx := range scenes {
		scene, ok := b.SceneAt(idx)
		if !ok {
			return apperrors.NewValidationError(fmt.Sprintf("choice scene %d missing", idx), nil)
		}
		scene.Choices = append(scene.Choices, byScene[idx]...)
		if err := b.ReplaceAt(idx, scene); err != nil {
			return err
		}
	}
	return nil
}

func resolveTarget(p pendingChoice, labels map[string]int) (int, error) {
	if p.target.Kind != yaml.ScalarNode || p.target.Value == "" {
		return 0, stepError(p.step, "choice %q needs a target", p.text)
	}
	if p.target.ShortTag() == "!!int" {
		idx, err := strconv.Atoi(p.target.Value)
		if err != nil {
			return 0, stepError(p.step, "choice %q: bad index %q", p.text, p.target.Value)
		}
		return idx, nil
	}
	idx, ok := labels[p.target.Value]
	if !ok {
		return 0, stepError(p.step, "choice %q: unknown label %q", p.text, p.target.Value)
	}
	return idx, nil
}

func decode(n int, key string, node *yaml.Node, out interface{}) error {
	if err := node.Decode(out); err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("step %d (line %d): %s", n, node.Line, key), err)
	}
	return nil
}

func stepError(n int, format string, args ...interface{}) error {
	return apperrors.NewValidationError(fmt.Sprintf("step %d: %s", n, fmt.Sprintf(format, args...)), nil)
}
