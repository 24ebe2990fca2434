// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command castordemo renders a small scene headlessly and prints engine
// statistics.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/castor"
	"github.com/gogpu/castor/frame"
	"github.com/gogpu/castor/recording"
	"github.com/gogpu/castor/scene"
)

func main() {
	var (
		config    = flag.String("config", "", "TOML configuration file")
		renderer  = flag.String("renderer", "", "renderer plugin (native, noop, recording)")
		technique = flag.String("technique", "", "render technique (forward, deferred)")
		effects   = flag.String("effects", "", "comma-separated post effects")
		frames    = flag.Int("frames", 120, "frames to render")
		switchTo  = flag.String("switch", "", "technique to switch to half way")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	cfg := castor.DefaultConfig()
	if *config != "" {
		var err error
		if cfg, err = castor.LoadConfig(*config); err != nil {
			log.Fatal(err)
		}
	}
	if *renderer != "" {
		cfg.Renderer = *renderer
	}
	if *technique != "" {
		cfg.Technique = *technique
	}
	if *effects != "" {
		cfg.PostEffects = strings.Split(*effects, ",")
	}

	level, err := cfg.Level()
	if err != nil {
		log.Fatal(err)
	}
	if *verbose {
		level = slog.LevelDebug
	}
	castor.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	e, err := castor.New(castor.WithConfig(cfg))
	if err != nil {
		log.Fatalf("castor: %v", err)
	}
	defer func() {
		if err := e.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	spinners, err := buildScene(e.Scene())
	if err != nil {
		log.Fatalf("scene: %v", err)
	}

	for i := range *frames {
		angle := float32(i) * 0.02
		err := e.PostFunc(frame.PreRender, "spin", func() error {
			for _, n := range spinners {
				n.SetOrientation(mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0}))
			}
			return nil
		})
		if err != nil {
			log.Fatal(err)
		}
		if *switchTo != "" && i == *frames/2 {
			if err := e.SetTechnique(*switchTo); err != nil {
				log.Fatal(err)
			}
		}
		if err := e.RenderFrame(); err != nil {
			log.Printf("frame %d: %v", i, err)
		}
	}

	report(e)
}

// buildScene adds a floor, a row of cubes and two lights. It returns the
// nodes to animate.
func buildScene(g *scene.Graph) ([]*scene.Node, error) {
	floor := scene.NewMaterial("floor")
	floor.Pass(0).Diffuse = mgl32.Vec3{0.4, 0.4, 0.45}
	glass := scene.NewMaterial("glass")
	glass.Pass(0).Opacity = 0.5

	ground, err := g.CreateNode("ground", nil)
	if err != nil {
		return nil, err
	}
	ground.SetPosition(mgl32.Vec3{0, -1, -6})
	if err := g.AddGeometry(scene.NewGeometry("ground", scene.NewMesh("ground", scene.Plane(10, floor))), ground); err != nil {
		return nil, err
	}

	var spinners []*scene.Node
	for i, mat := range []*scene.Material{scene.NewMaterial("white"), glass, scene.NewMaterial("white")} {
		name := fmt.Sprintf("cube.%d", i)
		n, err := g.CreateNode(name, nil)
		if err != nil {
			return nil, err
		}
		n.SetPosition(mgl32.Vec3{float32(i-1) * 2, 0, -6})
		if err := g.AddGeometry(scene.NewGeometry(name, scene.NewMesh(name, scene.Cube(1, mat))), n); err != nil {
			return nil, err
		}
		spinners = append(spinners, n)
	}

	if err := g.AddLight(scene.NewLight("sun", scene.LightDirectional), nil); err != nil {
		return nil, err
	}
	lamp, err := g.CreateNode("lamp", nil)
	if err != nil {
		return nil, err
	}
	lamp.SetPosition(mgl32.Vec3{0, 3, -4})
	return spinners, g.AddLight(scene.NewLight("lamp", scene.LightPoint), lamp)
}

func report(e *castor.Engine) {
	s := e.Stats()
	fmt.Printf("renderer   %s (%s)\n", e.Renderer(), e.Device().Info().Adapter)
	fmt.Printf("technique  %s\n", e.Technique().Name())
	fmt.Printf("frames     %d rendered, %d abandoned\n", s.Frames, s.Abandoned)
	fmt.Printf("draws      %d (%d fallbacks)\n", s.Technique.Draws, s.Technique.Fallbacks)
	fmt.Printf("states     %d bound, %d skipped\n", s.Device.StateBinds, s.Device.StateBindsSkipped)
	fmt.Printf("programs   %d bound, %d skipped\n", s.Device.ProgramBinds, s.Device.ProgramBindsSkipped)
	fmt.Printf("events     %d applied, %d dropped, %d failed\n", s.Events.Applied, s.Events.Dropped, s.Events.Failed)
	if rec, ok := e.Device().Backend().(*recording.Recorder); ok {
		fmt.Printf("recorded   %d commands, %d presents\n", rec.Len(), rec.Count(recording.CmdPresent))
	}
}
