// internal/story/graph.go
package story

import "github.com/Corphon/SceneNovel/internal/models"

// Graph is the finished, read-only story. It is safe to share between sessions.
type Graph struct {
	scenes []models.SceneSnapshot
	paths  []string
}

func newGraph(scenes []models.SceneSnapshot) *Graph {
	g := &Graph{scenes: scenes}
	seen := make(map[string]bool)
	for _, s := range scenes {
		if s.Path != "" && !seen[s.Path] {
			seen[s.Path] = true
			g.paths = append(g.paths, s.Path)
		}
	}
	return g
}

// Len is the number of scenes.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.scenes)
}

// Scene returns a copy of the scene at index.
func (g *Graph) Scene(index int) (models.SceneSnapshot, bool) {
	if index < 0 || index >= g.Len() {
		return models.SceneSnapshot{}, false
	}
	return g.scenes[index].Clone(), true
}

// Paths lists the branch tags used in the story, in order of first appearance.
func (g *Graph) Paths() []string {
	if g == nil {
		return nil
	}
	out := make([]string, len(g.paths))
	copy(out, g.paths)
	return out
}

// SceneSummary is the outline of one scene.
type SceneSummary struct {
	Index   int    `json:"index"`
	Note    string `json:"note"`
	Path    string `json:"path,omitempty"`
	Speaker string `json:"speaker,omitempty"`
	Targets []int  `json:"targets,omitempty"`
	Input   string `json:"input,omitempty"`
}

// Summary outlines the whole graph.
type Summary struct {
	SceneCount int            `json:"scene_count"`
	Paths      []string       `json:"paths"`
	Scenes     []SceneSummary `json:"scenes"`
}

// Summary outlines every scene and its outgoing choice edges.
func (g *Graph) Summary() Summary {
	sum := Summary{
		SceneCount: g.Len(),
		Paths:      g.Paths(),
		Scenes:     make([]SceneSummary, 0, g.Len()),
	}
	for i := 0; i < g.Len(); i++ {
		s := g.scenes[i]
		entry := SceneSummary{
			Index:   i,
			Note:    s.Note,
			Path:    s.Path,
			Speaker: s.Speaker,
		}
		for _, c := range s.Choices {
			entry.Targets = append(entry.Targets, c.TargetIndex)
		}
		if s.InputRequest != nil {
			entry.Input = s.InputRequest.VariableName
		}
		sum.Scenes = append(sum.Scenes, entry)
	}
	return sum
}

// Effects derives the side effects of the scene at index. Out-of-range indexes and
// empty graphs yield no effects.
func (g *Graph) Effects(index int) models.SideEffects {
	fx := models.SideEffects{SceneIndex: index, Motors: []models.MotorTarget{}}
	if index < 0 || index >= g.Len() {
		return fx
	}
	s := g.scenes[index]
	for _, m := range s.MotorCommands {
		fx.Motors = append(fx.Motors, models.MotorTarget{
			MotorID:         m.MotorID,
			PositionDegrees: m.PositionDegrees,
			Ticks:           m.Ticks(),
		})
	}
	fx.AudioFile = s.AudioFile
	if s.RobotPose != nil {
		pose := *s.RobotPose
		target := pose.Target()
		fx.RobotPose = &pose
		fx.RobotTarget = &target
	}
	return fx
}

// at is the unexported, copy-free accessor used by the navigator.
func (g *Graph) at(index int) *models.SceneSnapshot {
	return &g.scenes[index]
}
