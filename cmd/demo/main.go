// cmd/demo/main.go
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/Corphon/SceneNovel/internal/app"
	"github.com/Corphon/SceneNovel/internal/config"
	"github.com/Corphon/SceneNovel/internal/models"
	"github.com/Corphon/SceneNovel/internal/story"
	"github.com/Corphon/SceneNovel/internal/utils"
)

func main() {
	storyFile := flag.String("story", "", "YAML story script (default: STORY_FILE or the built-in story)")
	showEffects := flag.Bool("effects", true, "print motor, audio and pose commands")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *storyFile != "" {
		cfg.StoryFile = *storyFile
	}
	utils.GetLogger().SetLogLevel(utils.WARNING)

	graph, err := app.LoadGraph(cfg)
	if err != nil {
		log.Fatalf("load story: %v", err)
	}

	fmt.Println("📖 SceneNovel console")
	fmt.Println("====================")
	fmt.Println("enter: next   b: back   1-9: choose   q: quit")
	fmt.Println()

	play(story.NewNavigator(graph), os.Stdin, os.Stdout, *showEffects)
}

// play runs the read-render loop until the reader is exhausted or the player quits.
func play(nav *story.Navigator, in io.Reader, out io.Writer, showEffects bool) {
	scanner := bufio.NewScanner(in)
	render := nav.Current()
	if showEffects {
		printEffects(out, nav.Effects())
	}

	for {
		printScene(out, render)

		if render.HasInput() {
			fmt.Fprint(out, "> ")
		} else {
			fmt.Fprint(out, "[enter/b/q] ")
		}
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}
		line := strings.TrimSpace(scanner.Text())

		before := render.SceneIndex
		switch {
		case render.HasInput():
			render = nav.SubmitInput(line)
		case line == "q":
			return
		case line == "b":
			render = nav.Advance(-1)
		case len(render.Choices) > 0:
			n, err := strconv.Atoi(line)
			if err != nil {
				fmt.Fprintln(out, "pick one of the numbered choices")
				continue
			}
			render = nav.SelectChoice(n - 1)
		default:
			render = nav.Advance(1)
			if render.SceneIndex == before {
				fmt.Fprintln(out, "(the end)")
			}
		}

		if showEffects && render.SceneIndex != before {
			printEffects(out, nav.Effects())
		}
	}
}

func printScene(out io.Writer, r models.RenderDescriptor) {
	fmt.Fprintf(out, "\n[%s]\n", r.Meta)
	if len(r.Characters) > 0 {
		names := make([]string, 0, len(r.Characters))
		for _, c := range r.Characters {
			names = append(names, fmt.Sprintf("%s (%s)", c.Name, c.Position))
		}
		fmt.Fprintf(out, "  on stage: %s\n", strings.Join(names, ", "))
	}
	if r.Speaker != "" {
		fmt.Fprintf(out, "%s: %s\n", r.Speaker, r.Text)
	} else {
		fmt.Fprintln(out, r.Text)
	}
	for _, c := range r.Choices {
		fmt.Fprintf(out, "  %d) %s\n", c.Index+1, c.Text)
	}
	if r.InputPrompt != nil {
		fmt.Fprintf(out, "  %s\n", *r.InputPrompt)
	}
}

func printEffects(out io.Writer, fx models.SideEffects) {
	for _, m := range fx.Motors {
		fmt.Fprintf(out, "  ⚙ motor %d → %d° (%d ticks)\n", m.MotorID, m.PositionDegrees, m.Ticks)
	}
	if fx.AudioFile != "" {
		fmt.Fprintf(out, "  ♪ %s\n", fx.AudioFile)
	}
	if fx.RobotTarget != nil {
		p := fx.RobotTarget.TargetHeadPose
		fmt.Fprintf(out, "  🤖 head (%.2f, %.2f, %.2f) body yaw %.2f\n", p.X, p.Y, p.Z, fx.RobotTarget.TargetBodyYaw)
	}
}
