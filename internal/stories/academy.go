// internal/stories/academy.go
package stories

import (
	"github.com/Corphon/SceneNovel/internal/assets"
	apperrors "github.com/Corphon/SceneNovel/internal/errors"
	"github.com/Corphon/SceneNovel/internal/models"
	"github.com/Corphon/SceneNovel/internal/story"
	"github.com/Corphon/SceneNovel/internal/utils"
)

// Branch tags used by the academy story.
const (
	PathAccept    = "accept"
	PathDecline   = "decline"
	PathFollowAri = "accept.follow_ari"
	PathFollowBo  = "accept.follow_bo"
)

// Academy builds the built-in sample story: a name prompt, an accept/decline
// choice and two endings inside the accept branch. Relative asset names are
// resolved against baseURL.
func Academy(baseURL string) (*story.Graph, error) {
	res := assets.NewResolver(baseURL)
	b := story.NewBuilder()

	b.SetCharacters(
		models.CharacterDefinition{Name: "Ari", ImageURL: res.Sprite("reachy-mini-cartoon.svg")},
		models.CharacterDefinition{Name: "Bo", ImageURL: res.Sprite("ReachyMini_emotions_happy.svg"), Animated: true},
	)
	b.SetBackground(res.Background("workshop_bg.png"), "Workshop")
	b.SetStage(res.Background("p60-back-cover.png"))

	b.Narration("A hush falls over the academy courtyard as the gates creak open.")
	b.SetStage(res.Background("p3.png"))
	b.RequestInput("What is your name, traveler?", "player_name")
	b.Continue()

	b.ShowCharacter("Ari", models.PositionLeft)
	b.PlaySound(res.Audio("wake_up.wav"))
	b.Dialogue("Ari", "Welcome, {player_name}! I'm Ari, and this is Bo.")
	b.ShowCharacter("Bo", models.PositionRight)
	b.Dialogue("Bo", "Nice to meet you, {player_name}. We're on a quest to find the star fragment.")
	b.Dialogue("Ari", "Will you help us on our quest?")

	accept := b.Len()
	b.SetPath(PathAccept)
	b.Dialogue("Bo", "Excellent! We knew we could count on you, {player_name}!")
	b.MoveCharacter("Ari", models.PositionCenter)
	b.Narration("You join Ari and Bo on their adventure...")

	b.SetCamera(true)
	b.Dialogue("Ari", "First, let me see your face, {player_name}. The camera will help us verify your identity.")
	b.Narration("The camera activates, showing your live feed...")

	b.SetCamera(false)
	b.SetVoice(true)
	b.Dialogue("Bo", "Now, tell us about yourself using the voice recorder.")
	b.Narration("You can now record or upload audio to interact with the companions.")

	b.SetVoice(false)
	b.SetMotors(true)
	b.Dialogue("Ari", "Finally, we need to test the portal controls. Use the motor panel to align the crystals.")
	b.Narration("Motor controls are now available. Adjust the servos to proceed.")

	b.SendMotorCommand(1, 90)
	b.Dialogue("Ari", "Watch as the first crystal aligns itself!")
	b.SendMotorCommands(
		models.MotorCommand{MotorID: 1, PositionDegrees: 180},
		models.MotorCommand{MotorID: 2, PositionDegrees: 90},
	)
	b.Dialogue("Ari", "Now the portal crystals are synchronizing!")
	b.PlaySound(res.Audio("confused1.wav"))
	b.Dialogue("Ari", "Listen! The portal resonates with magical energy!")

	b.SetMotors(false)
	b.SetRobot(true)
	b.Dialogue("Bo", "Now let's test the Reachy Mini robot! It should be at localhost:8000.")
	b.Narration("The robot control panel appears. Make sure your Reachy Mini server is running.")

	// look up, antennas raised
	b.SendRobotPose(models.RobotPose{HeadZ: 0.02, HeadPitch: -0.1, AntennaLeft: -0.2, AntennaRight: 0.2})
	b.Dialogue("Ari", "Watch! The robot looks up in wonder!")
	// tilted head
	b.SendRobotPose(models.RobotPose{HeadZ: -0.04, HeadRoll: 0.1, HeadYaw: 0.1, AntennaLeft: -0.3, AntennaRight: 0.8})
	b.Dialogue("Bo", "The robot is expressing curiosity!")

	b.SetRobot(false)
	b.SetStage(res.Background("p3.png"))
	b.Dialogue("Ari", "Look! The portal is opening...")
	b.Narration("A mystical stage appears between you and the background.")

	b.SetBackgroundBlur(8)
	b.SetStageBlur(3)
	b.Dialogue("Ari", "Wait! Do you sense that? Something magical is happening...")
	b.Narration("The background and stage blur independently as Ari steps forward.")

	b.SetBackgroundBlur(0)
	b.SetStageBlur(0)
	b.SetStage("")

	b.SetCharacterAnimation("Bo", models.AnimationShake)
	b.Dialogue("Bo", "Whoa! Did you feel that tremor?!")
	b.SetCharacterAnimation("Bo", models.AnimationBounce)
	b.Dialogue("Bo", "This is so exciting! We're getting close!")
	b.SetCharacterAnimation("Bo", "")
	b.SetCharacterAnimation("Ari", models.AnimationPulse)
	b.Dialogue("Ari", "The star fragment... I can feel its power pulsing nearby.")

	b.SetCharacterAnimation("Ari", "")
	b.SetCharacterScale("Ari", 1.5)
	b.Dialogue("Ari", "The power... it's making me grow stronger!")
	b.SetCharacterScale("Bo", 0.7)
	b.Dialogue("Bo", "Whoa, you're getting really big! Or am I shrinking?")
	b.SetCharacterScale("Ari", 1.0)
	b.SetCharacterScale("Bo", 1.0)

	b.Dialogue("Ari", "The portal is ready! But wait...")
	b.Dialogue("Bo", "The path splits here! We need to split up to cover more ground.")
	b.Dialogue("Ari", "You'll need to choose who to follow, {player_name}.")

	followAri := b.Len()
	b.SetPath(PathFollowAri)
	b.Dialogue("Ari", "Wise choice! My path leads through the ancient library.")
	b.HideCharacter("Bo")
	b.MoveCharacter("Ari", models.PositionCenter)
	b.SetBackground(res.Background("p3.png"), "Library")
	b.Narration("Bo waves goodbye as you follow Ari into the misty corridors...")
	b.Dialogue("Ari", "The fragment's energy is strongest here. Stay close!")
	b.SetCharacterAnimation("Ari", models.AnimationPulse)
	b.SendMotorCommand(1, 45)
	b.Dialogue("Ari", "The ancient mechanisms are responding!")
	b.SetCharacterAnimation("Ari", "")
	b.Narration("You discover the star fragment hidden in an ancient tome.")
	b.Dialogue("Ari", "We did it, {player_name}! The knowledge was the key all along.")
	b.PlaySound(res.Audio("wake_up.wav"))
	b.Narration("✨ Ending: The Scholar's Path (Follow Ari)")

	followBo := b.Len()
	b.SetPath(PathFollowBo)
	b.Dialogue("Bo", "Adventure time! My route goes through the crystal caves!")
	b.HideCharacter("Ari")
	b.MoveCharacter("Bo", models.PositionCenter)
	b.SetBackground(res.Background("workshop_bg.png"), "Crystal Caves")
	b.Narration("Ari nods encouragingly as you follow Bo into the glowing caves...")
	b.Dialogue("Bo", "Can you feel the energy? It's electric!")
	b.SetCharacterAnimation("Bo", models.AnimationBounce)
	b.SendMotorCommands(
		models.MotorCommand{MotorID: 1, PositionDegrees: 135},
		models.MotorCommand{MotorID: 2, PositionDegrees: 135},
	)
	b.Dialogue("Bo", "The crystals are resonating! We're so close!")
	b.SetCharacterAnimation("Bo", models.AnimationShake)
	b.Narration("A powerful tremor shakes the cavern as the fragment reveals itself!")
	b.Dialogue("Bo", "Whoa! Grab it, {player_name}!")
	b.SetCharacterAnimation("Bo", "")
	b.PlaySound(res.Audio("wake_up.wav"))
	b.Narration("✨ Ending: The Adventurer's Path (Follow Bo)")

	if err := attachChoice(b, followAri-1, PathAccept, "Second Choice (2 paths)",
		models.Choice{Text: "Follow Ari (Library)", TargetIndex: followAri},
		models.Choice{Text: "Follow Bo (Caves)", TargetIndex: followBo},
	); err != nil {
		return nil, err
	}

	decline := b.Len()
	b.SetPath(PathDecline)
	b.Dialogue("Ari", "That's... disappointing, {player_name}.")
	b.HideCharacter("Bo")
	b.Dialogue("Ari", "I guess we're on our own, Bo.")
	b.Narration("Ari and Bo leave without you... (Decline path)")

	if err := attachChoice(b, accept-1, "", "Choice (2 options)",
		models.Choice{Text: "Yes, I'll help!", TargetIndex: accept},
		models.Choice{Text: "No, sorry.", TargetIndex: decline},
	); err != nil {
		return nil, err
	}

	return b.Build()
}

// attachChoice turns an already emitted scene into a choice point.
func attachChoice(b *story.Builder, index int, path, note string, choices ...models.Choice) error {
	scene, ok := b.SceneAt(index)
	if !ok {
		return apperrors.NewValidationError("choice scene out of range", nil)
	}
	scene.Choices = choices
	scene.InputRequest = nil
	scene.Path = path
	scene.Note = note
	if err := b.ReplaceAt(index, scene); err != nil {
		return err
	}
	utils.GetLogger().Debug("choice attached", map[string]interface{}{
		"scene":   index,
		"choices": len(choices),
	})
	return nil
}
