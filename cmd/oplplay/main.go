package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/slade-tools/oplplay/pkg/audio"
	"github.com/slade-tools/oplplay/pkg/config"
	"github.com/slade-tools/oplplay/pkg/opl"
	"github.com/slade-tools/oplplay/pkg/oplmusic"
)

var (
	configFile  = flag.String("config", "", "TOML config file")
	chips       = flag.Int("chips", 2, "Number of emulated OPL chips (1-8)")
	sampleRate  = flag.Int("rate", opl.SampleRate, "Sample rate (Hz)")
	imfRate     = flag.Int("imf-rate", oplmusic.DefaultImfRate, "IMF tick rate (Hz)")
	bufferSize  = flag.Int("buffer", 4096, "Frames per audio pull")
	loop        = flag.Bool("loop", false, "Loop playback")
	volume      = flag.Int("volume", 100, "Volume (0 to 100)")
	genmidi     = flag.String("genmidi", "", "GENMIDI instrument bank for MUS files")
	singleVoice = flag.Bool("single-voice", false, "Never use a second voice for double-voice instruments")
	assumeIMF   = flag.Bool("imf", false, "Treat headerless files as IMF")
	output      = flag.String("output", "oto", "Output backend (oto, beep, null)")
	info        = flag.Bool("info", false, "Show file info only")
	dump        = flag.String("dump", "", "Write the register stream to a .dro or .raw file instead of playing")
	trace       = flag.Int("trace", 0, "Print the register writes of the first N ticks instead of playing")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <file>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "OPL Player - Play raw OPL, IMF, AdLib sound effect and MUS files\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	musicFile := flag.Arg(0)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	rates, err := cfg.RateTable()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	data, err := os.ReadFile(musicFile)
	if err != nil {
		log.Fatalf("Failed to read file: %v", err)
	}

	var bank *opl.Bank
	if cfg.GenMIDI != "" {
		bank, err = opl.ReadBankFile(cfg.GenMIDI)
		if err != nil {
			log.Fatalf("Failed to load instrument bank: %v", err)
		}
	}
	mcfg := cfg.Music(bank)
	mcfg.AssumeIMF = *assumeIMF

	switch {
	case *dump != "":
		if err := dumpFile(data, mcfg, *dump); err != nil {
			log.Fatalf("Dump failed: %v", err)
		}
		return
	case *trace > 0:
		if err := traceFile(data, mcfg, *trace); err != nil {
			log.Fatalf("Trace failed: %v", err)
		}
		return
	}

	// Create audio output
	var audioOut audio.Output
	switch cfg.Output {
	case "oto":
		audioOut = audio.NewOtoOutput(cfg.Buffer)
	case "beep":
		audioOut = audio.NewBeepOutput(cfg.Buffer)
	case "null":
		audioOut = audio.NewFallbackOutput(cfg.Buffer)
	default:
		log.Fatalf("Unknown output backend: %s", cfg.Output)
	}

	player := audio.NewPlayer(mcfg, rates, audioOut)
	defer player.Close()

	fmt.Printf("Loading %s...\n", filepath.Base(musicFile))
	if err := player.Open(data); err != nil {
		log.Fatalf("Failed to load file: %v", err)
	}

	format, _ := player.Format()
	fmt.Printf("\n")
	fmt.Printf("Format:   %s\n", format)
	fmt.Printf("Length:   %d bytes\n", player.Length())
	if format == oplmusic.IMF {
		fmt.Print(player.Info())
	}
	fmt.Printf("\n")

	if *info {
		return
	}

	player.SetLoop(cfg.Loop)
	player.SetVolume(cfg.Volume)

	if err := player.Play(); err != nil {
		if cfg.Output != "oto" {
			log.Fatalf("Failed to start playback: %v", err)
		}
		log.Printf("Warning: audio output failed (%v), falling back to timing-based output", err)
		player.Close()
		player = audio.NewPlayer(mcfg, rates, audio.NewFallbackOutput(cfg.Buffer))
		if err := player.Open(data); err != nil {
			log.Fatalf("Failed to load file: %v", err)
		}
		player.SetLoop(cfg.Loop)
		player.SetVolume(cfg.Volume)
		if err := player.Play(); err != nil {
			log.Fatalf("Failed to start playback: %v", err)
		}
	}

	fmt.Printf("Playing... (Press Ctrl+C to stop)\n")
	if cfg.Loop {
		fmt.Printf("Looping enabled\n")
	}
	fmt.Printf("\n")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, player); err != nil {
		log.Printf("Playback error: %v", err)
	}
}

// loadConfig reads the config file, then applies the flags given on the
// command line over it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return cfg, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "chips":
			cfg.Chips = *chips
		case "rate":
			cfg.SampleRate = *sampleRate
		case "imf-rate":
			cfg.ImfRate = *imfRate
		case "buffer":
			cfg.Buffer = *bufferSize
		case "loop":
			cfg.Loop = *loop
		case "volume":
			cfg.Volume = *volume
		case "genmidi":
			cfg.GenMIDI = *genmidi
		case "single-voice":
			cfg.SingleVoice = *singleVoice
		case "output":
			cfg.Output = *output
		}
	})
	err = cfg.Validate()
	return cfg, err
}

// run waits for the end of playback or a signal, showing progress when
// stdout is a terminal.
func run(ctx context.Context, player *audio.Player) error {
	g, ctx := errgroup.WithContext(ctx)
	done := player.Done()

	g.Go(func() error {
		select {
		case <-ctx.Done():
			fmt.Printf("\n\nStopping...\n")
		case <-done:
			fmt.Printf("\n\nPlayback finished.\n")
		}
		player.Stop()
		return nil
	})

	if term.IsTerminal(int(os.Stdout.Fd())) {
		g.Go(func() error {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-done:
					return nil
				case <-ticker.C:
					pos, total := player.Position(), player.Length()
					if total > 0 {
						percent := float64(pos) / float64(total) * 100
						fmt.Printf("\r[%s] %d / %d (%.1f%%)",
							makeProgressBar(percent, 30), pos, total, percent)
					}
				}
			}
		})
	}
	return g.Wait()
}

func dumpFile(data []byte, cfg oplmusic.Config, path string) error {
	w := opl.NewDiskWriter(path)
	cfg.Backend = w
	m, err := oplmusic.Open(data, cfg)
	if err != nil {
		return err
	}
	ticks := m.Dump(0)
	if err := m.Close(); err != nil {
		return err
	}
	kind := "RDOS raw"
	if w.Format() == opl.DiskDosBox {
		kind = "DOSBox raw"
	}
	fmt.Printf("Wrote %d ticks of %s to %s as %s OPL\n", ticks, m.Format(), path, kind)
	return nil
}

func traceFile(data []byte, cfg oplmusic.Config, ticks int) error {
	cfg.Backend = &opl.Recorder{Trace: os.Stdout}
	m, err := oplmusic.Open(data, cfg)
	if err != nil {
		return err
	}
	defer m.Close()
	m.Dump(ticks)
	return nil
}

func makeProgressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("=", filled)
	if filled < width {
		bar += ">"
		bar += strings.Repeat(" ", width-filled-1)
	}

	return bar
}
