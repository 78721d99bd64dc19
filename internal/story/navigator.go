// internal/story/navigator.go
package story

import (
	"encoding/json"
	"sort"

	"github.com/Corphon/SceneNovel/internal/models"
	"github.com/Corphon/SceneNovel/internal/utils"
)

// State is one player's progress through a graph. Variables and ActivePaths only grow.
type State struct {
	Index       int
	Variables   map[string]string
	ActivePaths map[string]struct{}
}

// MarshalJSON reports the active paths as a sorted list.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Index       int               `json:"index"`
		Variables   map[string]string `json:"variables"`
		ActivePaths []string          `json:"active_paths"`
	}{s.Index, s.Variables, s.Paths()})
}

// Paths lists the activated paths in sorted order.
func (s State) Paths() []string {
	out := make([]string, 0, len(s.ActivePaths))
	for p := range s.ActivePaths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s State) clone() State {
	out := State{
		Index:       s.Index,
		Variables:   make(map[string]string, len(s.Variables)),
		ActivePaths: make(map[string]struct{}, len(s.ActivePaths)),
	}
	for k, v := range s.Variables {
		out.Variables[k] = v
	}
	for p := range s.ActivePaths {
		out.ActivePaths[p] = struct{}{}
	}
	return out
}

// Navigator walks a graph for a single player. It is not safe for concurrent use;
// callers serialise operations per session.
type Navigator struct {
	graph  *Graph
	state  State
	logger *utils.Logger
}

// NewNavigator starts at scene 0 with no variables and no active paths.
func NewNavigator(g *Graph) *Navigator {
	return &Navigator{
		graph: g,
		state: State{
			Variables:   make(map[string]string),
			ActivePaths: make(map[string]struct{}),
		},
		logger: utils.GetLogger(),
	}
}

// Graph returns the graph the navigator walks.
func (n *Navigator) Graph() *Graph {
	return n.graph
}

// State returns a copy of the navigation state.
func (n *Navigator) State() State {
	return n.state.clone()
}

// Current renders the current scene without changing anything.
func (n *Navigator) Current() models.RenderDescriptor {
	return Render(n.graph, n.state.Index, n.state.Variables)
}

// Effects returns the side effects attached to the current scene.
func (n *Navigator) Effects() models.SideEffects {
	return n.graph.Effects(n.state.Index)
}

// Advance moves to the nearest accessible scene in direction (only its sign
// matters). Nothing happens when no such scene exists; 0 just re-renders.
func (n *Navigator) Advance(direction int) models.RenderDescriptor {
	step := sign(direction)
	if step == 0 || n.graph.Len() == 0 {
		return n.Current()
	}

	for i := n.state.Index + step; i >= 0 && i < n.graph.Len(); i += step {
		if n.graph.at(i).AccessibleWith(n.state.ActivePaths) {
			n.state.Index = i
			break
		}
	}
	return n.Current()
}

// SelectChoice follows choice choiceIndex of the current scene and activates the
// target's path. Invalid indexes re-render the current scene.
func (n *Navigator) SelectChoice(choiceIndex int) models.RenderDescriptor {
	if n.graph.Len() == 0 {
		return n.Current()
	}

	scene := n.graph.at(n.state.Index)
	if choiceIndex < 0 || choiceIndex >= len(scene.Choices) {
		return n.Advance(0)
	}

	target := scene.Choices[choiceIndex].TargetIndex
	n.state.Index = target
	if path := n.graph.at(target).Path; path != "" {
		if _, ok := n.state.ActivePaths[path]; !ok {
			n.state.ActivePaths[path] = struct{}{}
			n.logger.Debug("path activated", map[string]interface{}{
				"path":  path,
				"scene": target,
			})
		}
	}
	return n.Current()
}

// SubmitInput stores a non-empty value for the current input request and then
// steps to the next scene, whether or not anything was stored.
func (n *Navigator) SubmitInput(value string) models.RenderDescriptor {
	if n.graph.Len() == 0 {
		return n.Current()
	}

	scene := n.graph.at(n.state.Index)
	if req := scene.InputRequest; req != nil && value != "" {
		n.state.Variables[req.VariableName] = value
		n.logger.Debug("variable stored", map[string]interface{}{
			"name":  req.VariableName,
			"scene": n.state.Index,
		})
	}

	if next := n.state.Index + 1; next < n.graph.Len() {
		n.state.Index = next
	}
	return n.Current()
}

func sign(d int) int {
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	}
	return 0
}
