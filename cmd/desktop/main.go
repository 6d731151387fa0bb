package main

import (
	"flag"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"gochip8/pkg/config"
	"gochip8/pkg/cpu"
	"gochip8/pkg/sound"
	"gochip8/pkg/utils"
)

var logger = loggo.GetLogger("gochip8.desktop")

type Game struct {
	runner  *cpu.Runner
	vm      *cpu.CPU
	keys    map[ebiten.Key]uint8
	on, off color.RGBA
	img     *ebiten.Image // reused 64x32 canvas
	fault   error
	shotDir string
	scale   int
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		g.screenshot()
	}

	for digit, down := range keypadState(g.keys, ebiten.IsKeyPressed) {
		g.vm.Keys.Set(uint8(digit), down)
	}

	if g.fault != nil {
		return nil
	}
	if err := g.runner.Advance(); err != nil {
		// Keep the window open on the last frame.
		g.fault = err
		logger.Errorf("interpreter stopped: %v", err)
	}
	return nil
}

func (g *Game) screenshot() {
	name := filepath.Join(g.shotDir, fmt.Sprintf("gochip8-%06d.png", g.vm.Cycles))
	if err := g.vm.Display.SaveScreenshot(name, g.scale, g.on, g.off); err != nil {
		logger.Warningf("screenshot: %v", err)
		return
	}
	logger.Infof("saved %s", name)
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.img == nil {
		g.img = ebiten.NewImage(cpu.ScreenWidth, cpu.ScreenHeight)
		g.vm.Display.ConsumeChanged()
		g.refresh()
	} else if g.vm.Display.ConsumeChanged() {
		g.refresh()
	}
	screen.DrawImage(g.img, nil)

	if g.fault != nil {
		ebitenutil.DebugPrintAt(screen, "HALT", 2, 0)
	}
}

func (g *Game) refresh() {
	snap := g.vm.Display.Snapshot()
	g.img.WritePixels(snap.RGBA(g.on, g.off))
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return cpu.ScreenWidth, cpu.ScreenHeight
}

// keypadState folds the host keys into keypad state. A digit bound to
// several host keys is down while any of them is pressed.
func keypadState(keys map[ebiten.Key]uint8, pressed func(ebiten.Key) bool) [cpu.KeyCount]bool {
	var state [cpu.KeyCount]bool
	for k, digit := range keys {
		if pressed(k) {
			state[digit&0x0F] = true
		}
	}
	return state
}

// resolveKeys maps configured key names onto ebiten keys. Names match
// ebiten's key names case-insensitively, with "Digit" optional, so both
// "1" and "digit1" select the 1 key.
func resolveKeys(names map[string]uint8) (map[ebiten.Key]uint8, error) {
	byName := make(map[string]ebiten.Key)
	for k := ebiten.Key(0); k <= ebiten.KeyMax; k++ {
		name := strings.ToLower(k.String())
		if name == "" {
			continue
		}
		byName[name] = k
		if short, ok := strings.CutPrefix(name, "digit"); ok {
			byName[short] = k
		}
	}

	out := make(map[ebiten.Key]uint8, len(names))
	for name, digit := range names {
		k, ok := byName[strings.ToLower(name)]
		if !ok {
			return nil, errors.NotFoundf("key %q", name)
		}
		out[k] = digit
	}
	return out, nil
}

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: desktop [-config file] <program.ch8|program.asm>")
		os.Exit(2)
	}

	if err := run(*configPath, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", errors.ErrorStack(err))
		os.Exit(1)
	}
}

func run(configPath, programPath string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return errors.Trace(err)
		}
	}
	if err := cfg.ConfigureLogging(); err != nil {
		return errors.Trace(err)
	}

	fullPath, baseDir, err := utils.GetPathInfo(programPath)
	if err != nil {
		return errors.Trace(err)
	}
	image, err := utils.ReadProgram(fullPath)
	if err != nil {
		return errors.Trace(err)
	}

	names, err := cfg.Keys()
	if err != nil {
		return errors.Trace(err)
	}
	keys, err := resolveKeys(names)
	if err != nil {
		return errors.Trace(err)
	}

	vm := cpu.NewCPU(cfg.CPUOptions()...)
	if err := vm.LoadProgram(image); err != nil {
		return errors.Trace(err)
	}
	runner := cpu.NewRunner(vm, cfg.RunnerOptions())

	tone := sound.NewTone(sound.DefaultSampleRate, cfg.ToneHz, cfg.Volume)
	runner.Mount(tone)
	if player, err := sound.NewPlayer(tone); err != nil {
		logger.Warningf("audio disabled: %v", err)
	} else {
		player.Start()
		defer player.Close()
	}

	on, off := cfg.Palette()
	game := &Game{
		runner:  runner,
		vm:      vm,
		keys:    keys,
		on:      on,
		off:     off,
		shotDir: baseDir,
		scale:   cfg.Scale,
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(cpu.ScreenWidth*cfg.Scale, cpu.ScreenHeight*cfg.Scale)
	ebiten.SetWindowTitle("gochip8 - " + filepath.Base(fullPath))
	if err := ebiten.RunGame(game); err != nil && err != ebiten.Termination {
		return errors.Trace(err)
	}
	return nil
}
