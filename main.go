//go:build !js

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"gochip8/pkg/asm"
	"gochip8/pkg/config"
	"gochip8/pkg/cpu"
	"gochip8/pkg/monitor"
	"gochip8/pkg/sound"
	"gochip8/pkg/utils"
)

var logger = loggo.GetLogger("gochip8")

// runOptions describes one headless run.
type runOptions struct {
	path       string
	cycles     int
	dump       bool
	screenshot string
	wav        string
}

func main() {
	inPath := flag.String("in", "", "input assembly file path")
	outPath := flag.String("out", "", "output program image path (default: input with .ch8 extension)")
	disasmPath := flag.String("disasm", "", "print a listing of a program image or assembly file")
	runProgram := flag.Bool("run", false, "run the assembled image headless")
	runBinPath := flag.String("run-bin", "", "run an existing program image or assembly file headless")
	cycles := flag.Int("cycles", 1000, "number of instruction cycles for a headless run")
	dump := flag.Bool("dump", false, "print registers, stack and display after a headless run")
	screenshot := flag.String("screenshot", "", "write the final display to this PNG file")
	wavPath := flag.String("wav", "", "record the sound timer to this WAV file")
	configPath := flag.String("config", "", "YAML configuration file")
	debug := flag.Bool("debug", false, "log at DEBUG level")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(2)
	}

	if *runProgram && *runBinPath != "" {
		fmt.Fprintln(os.Stderr, "use either -run or -run-bin, not both")
		os.Exit(2)
	}

	assembledOutput := ""
	if *inPath != "" {
		output := *outPath
		if output == "" {
			output = defaultOutputPath(*inPath)
		}
		n, err := assembleFile(*inPath, output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "assembly failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("assembled %d bytes -> %s\n", n, output)
		assembledOutput = output
	}

	if *disasmPath != "" {
		if err := disassembleFile(os.Stdout, *disasmPath); err != nil {
			fmt.Fprintf(os.Stderr, "disassembly failed: %v\n", err)
			os.Exit(1)
		}
	}

	if *inPath == "" && *disasmPath == "" && *runBinPath == "" && !*runProgram {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in to assemble, -disasm to list, -run to run assembled output, or -run-bin <file> to run an existing image")
		flag.Usage()
		os.Exit(2)
	}

	runTarget := ""
	switch {
	case *runBinPath != "":
		runTarget = *runBinPath
	case *runProgram:
		if assembledOutput == "" {
			fmt.Fprintln(os.Stderr, "-run requires -in, or use -run-bin <file>")
			os.Exit(2)
		}
		runTarget = assembledOutput
	default:
		return
	}

	opts := runOptions{
		path:       runTarget,
		cycles:     *cycles,
		dump:       *dump,
		screenshot: *screenshot,
		wav:        *wavPath,
	}
	if err := runHeadless(os.Stdout, cfg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "run failed for %q: %v\n", runTarget, err)
		os.Exit(1)
	}
}

func loadConfig(path string, debug bool) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if debug {
		cfg.Log = "<root>=DEBUG"
	}
	if err := cfg.ConfigureLogging(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

func defaultOutputPath(inPath string) string {
	ext := filepath.Ext(inPath)
	if ext == "" {
		return inPath + ".ch8"
	}
	return strings.TrimSuffix(inPath, ext) + ".ch8"
}

func assembleFile(inPath, outPath string) (int, error) {
	source, err := os.ReadFile(inPath)
	if err != nil {
		return 0, errors.Annotatef(err, "reading %s", inPath)
	}
	code, _, err := asm.Assemble(string(source))
	if err != nil {
		return 0, errors.Trace(err)
	}
	if err := os.WriteFile(outPath, code, 0o644); err != nil {
		return 0, errors.Annotatef(err, "writing %s", outPath)
	}
	return len(code), nil
}

func disassembleFile(w io.Writer, path string) error {
	var (
		image  []byte
		labels map[uint16]string
	)
	if utils.IsSource(path) {
		source, err := os.ReadFile(path)
		if err != nil {
			return errors.Annotatef(err, "reading %s", path)
		}
		a := asm.NewAssembler()
		if image, _, err = a.Assemble(string(source)); err != nil {
			return errors.Trace(err)
		}
		labels = monitor.InvertLabels(a.Labels())
	} else {
		var err error
		if image, err = utils.ReadImage(path); err != nil {
			return errors.Trace(err)
		}
	}
	monitor.Disassemble(w, image, cpu.ProgramStart, labels)
	return nil
}

// runHeadless runs the program for the requested number of cycles in
// emulated time, so the result does not depend on host speed.
func runHeadless(w io.Writer, cfg *config.Config, opts runOptions) (rerr error) {
	image, err := utils.ReadProgram(opts.path)
	if err != nil {
		return errors.Trace(err)
	}

	vm := cpu.NewCPU(cfg.CPUOptions()...)
	if err := vm.LoadProgram(image); err != nil {
		return errors.Trace(err)
	}
	runner := cpu.NewRunner(vm, cfg.RunnerOptions())

	if opts.wav != "" {
		rec := sound.NewRecorder(opts.wav, sound.NewTone(sound.DefaultSampleRate, cfg.ToneHz, cfg.Volume))
		runner.Mount(rec)
		defer func() {
			if err := rec.Close(); err != nil && rerr == nil {
				rerr = err
			}
		}()
	}

	period := time.Second / time.Duration(cfg.CyclesPerSecond)
	runErr := runner.Simulate(time.Duration(opts.cycles) * period)
	if runErr != nil {
		logger.Errorf("stopped after %d cycles: %v", vm.Cycles, runErr)
	}

	fmt.Fprintf(w, "run complete (%s): cycles=%d ticks=%d PC=0x%03X I=0x%03X halted=%t waiting=%t\n",
		opts.path, vm.Cycles, runner.Ticks(), vm.Regs.PC, vm.Regs.I, vm.Halted, vm.Waiting)

	if opts.dump {
		monitor.DumpState(w, vm)
		if err := monitor.RenderDisplay(w, vm.Display.Snapshot()); err != nil {
			return errors.Trace(err)
		}
	}
	if opts.screenshot != "" {
		on, off := cfg.Palette()
		if err := vm.Display.SaveScreenshot(opts.screenshot, cfg.Scale, on, off); err != nil {
			return errors.Trace(err)
		}
	}
	return runErr
}
