// cmd/server/main.go
package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/SceneNovel/internal/app"
	"github.com/Corphon/SceneNovel/internal/config"
	"github.com/Corphon/SceneNovel/internal/di"
)

func main() {
	log.Println("🚀 starting SceneNovel server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Printf("✅ config loaded, port: %s", cfg.Port)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		log.Fatalf("create log directory %s: %v", cfg.LogDir, err)
	}

	if err := app.Initialize(cfg); err != nil {
		log.Fatalf("initialize services: %v", err)
	}
	log.Printf("✅ services initialized: %v", di.GetContainer().GetNames())

	story := "built-in academy story"
	if cfg.StoryFile != "" {
		story = cfg.StoryFile
		if cfg.WatchStory {
			story += " (watching for changes)"
		}
	}
	log.Printf("📖 serving %s", story)
	log.Printf("🌐 listening on http://localhost:%s", cfg.Port)
	log.Printf("🔗 websocket: ws://localhost:%s/ws/sessions/{id}", cfg.Port)

	if err := app.Run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Println("✅ server stopped")
}
