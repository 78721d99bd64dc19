package stories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/SceneNovel/internal/story"
)

func TestAcademyBuilds(t *testing.T) {
	g, err := Academy("")
	require.NoError(t, err)
	require.Greater(t, g.Len(), 80)
	assert.Equal(t, []string{PathAccept, PathFollowAri, PathFollowBo, PathDecline}, g.Paths())

	var choicePoints []int
	for i := 0; i < g.Len(); i++ {
		s, _ := g.Scene(i)
		if s.HasChoices() {
			choicePoints = append(choicePoints, i)
		}
	}
	require.Len(t, choicePoints, 2)

	first, _ := g.Scene(choicePoints[0])
	assert.Empty(t, first.Path, "first choice is on the main path")
	assert.Equal(t, "Choice (2 options)", first.Note)
	second, _ := g.Scene(choicePoints[1])
	assert.Equal(t, PathAccept, second.Path)
}

func TestAcademyPlaythrough(t *testing.T) {
	g, err := Academy("")
	require.NoError(t, err)
	nav := story.NewNavigator(g)

	r := nav.Current()
	for !r.HasInput() {
		r = nav.Advance(1)
	}
	assert.Equal(t, "What is your name, traveler?", *r.InputPrompt)

	r = nav.SubmitInput("Sam")
	assert.Equal(t, "Sam", nav.State().Variables["player_name"])

	// walk the main path until the first choice
	for len(r.Choices) == 0 {
		before := r.SceneIndex
		r = nav.Advance(1)
		require.NotEqual(t, before, r.SceneIndex, "stuck before the first choice")
	}
	assert.Equal(t, "Will you help us on our quest?", r.Text)
	assert.False(t, r.NavEnabled)

	r = nav.SelectChoice(1)
	assert.Equal(t, "That's... disappointing, Sam.", r.Text)
	assert.Equal(t, []string{PathDecline}, nav.State().Paths())

	for {
		before := r.SceneIndex
		r = nav.Advance(1)
		if r.SceneIndex == before {
			break
		}
	}
	assert.Equal(t, "Ari and Bo leave without you... (Decline path)", r.Text)
	assert.Equal(t, g.Len()-1, r.SceneIndex)
}

func TestAcademyAcceptSkipsOtherBranches(t *testing.T) {
	g, err := Academy("")
	require.NoError(t, err)
	nav := story.NewNavigator(g)

	r := nav.Current()
	for len(r.Choices) == 0 {
		r = nav.Advance(1)
	}
	r = nav.SelectChoice(0)
	for len(r.Choices) == 0 {
		r = nav.Advance(1)
	}
	assert.Equal(t, "You'll need to choose who to follow, {player_name}.", r.Text)

	r = nav.SelectChoice(1)
	assert.Equal(t, "Adventure time! My route goes through the crystal caves!", r.Text)

	for {
		before := r.SceneIndex
		r = nav.Advance(1)
		if r.SceneIndex == before {
			break
		}
	}
	assert.Equal(t, "✨ Ending: The Adventurer's Path (Follow Bo)", r.Text, "decline scenes stay hidden")

	fx := g.Effects(nav.State().Index - 1)
	assert.Contains(t, fx.AudioFile, "/assets/audio/wake_up.wav")
}
