// internal/story/render.go
package story

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Corphon/SceneNovel/internal/models"
)

// NoContentText is shown when the story has no scenes.
const NoContentText = "No scenes available."

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// Substitute replaces {name} with variables[name] in a single pass. Placeholders
// without a variable stay as written, and inserted values are not rescanned.
func Substitute(text string, variables map[string]string) string {
	if len(variables) == 0 {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		if v, ok := variables[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// Render builds the descriptor for the scene at index.
func Render(g *Graph, index int, variables map[string]string) models.RenderDescriptor {
	if g.Len() == 0 || index < 0 || index >= g.Len() {
		return models.RenderDescriptor{
			SceneIndex: 0,
			SceneCount: g.Len(),
			Characters: []models.CharacterView{},
			Text:       NoContentText,
			Meta:       "",
			NavEnabled: true,
		}
	}

	s := g.at(index)
	out := models.RenderDescriptor{
		SceneIndex: index,
		SceneCount: g.Len(),
		Background: models.BackgroundView{
			URL:    s.Background.URL,
			Label:  s.Background.Label,
			BlurPx: s.Background.BlurPx,
		},
		Stage: models.StageView{
			URL:    s.Stage.URL,
			BlurPx: s.Stage.BlurPx,
		},
		Characters: make([]models.CharacterView, 0, len(s.Characters)),
		Speaker:    s.Speaker,
		Text:       Substitute(strings.TrimSpace(s.Text), variables),
		Meta:       fmt.Sprintf("%s · %d / %d", orDefault(s.Background.Label, "Scene"), index+1, g.Len()),
		ShowCamera: s.Features.ShowCamera,
		ShowVoice:  s.Features.ShowVoice,
		ShowMotors: s.Features.ShowMotors,
		ShowRobot:  s.Features.ShowRobot,
		NavEnabled: !s.Gated(),
	}

	for _, c := range s.Characters {
		if !c.Visible {
			continue
		}
		out.Characters = append(out.Characters, models.CharacterView{
			Name:      c.Name,
			ImageURL:  c.ImageURL,
			Position:  c.Position,
			Animation: c.Animation,
			Scale:     c.Scale,
		})
	}

	if s.HasChoices() {
		out.Choices = make([]models.ChoiceView, len(s.Choices))
		for i, c := range s.Choices {
			out.Choices[i] = models.ChoiceView{Index: i, Text: c.Text}
		}
	}
	if s.InputRequest != nil {
		prompt := s.InputRequest.Prompt
		out.InputPrompt = &prompt
	}
	return out
}
