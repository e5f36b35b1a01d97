package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/cbegin/grainscope"
	"github.com/cbegin/grainscope/internal/logging"
	"github.com/cbegin/grainscope/internal/sample"
)

// defaultScript holds one note in loop mode while the grains stretch.
const defaultScript = `
0    loop on
0    on 60
1    coeff 2
2    coeff 4
3    off 60
4    end
`

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		input      = flag.String("in", "", "source sample (wav, aiff, mp3, ogg)")
		output     = flag.String("out", "grains.wav", "output wav path")
		scriptPath = flag.String("script", "", "path to a performance script")
		inline     = flag.String("perform", "", "inline performance script; use ';' between lines")
		volume     = flag.Float64("volume", 0.7, "master volume (0..1)")
		seed       = flag.Int64("seed", 1, "jitter seed")
		verbose    = flag.Bool("v", false, "log to stderr")
	)
	flag.Parse()

	if *input == "" {
		log.Fatal("-in is required")
	}
	text, err := resolveScript(*scriptPath, *inline)
	if err != nil {
		log.Fatal(err)
	}
	perf, err := grainscope.ParsePerformance(strings.NewReader(text))
	if err != nil {
		log.Fatal(err)
	}
	buf, err := sample.Load(*input, *sampleRate)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.Discard()
	if *verbose {
		logger = logging.New(os.Stderr, false)
	}
	perf.Events = append([]grainscope.Event{{Cmd: grainscope.CmdVolume, Value: *volume}}, perf.Events...)
	out, err := grainscope.RenderOffline(buf, perf,
		grainscope.WithSampleRate(*sampleRate),
		grainscope.WithSeed(*seed),
		grainscope.WithLogger(logger),
	)
	if err != nil {
		log.Fatal(err)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatal(err)
	}
	if err := sample.WriteWAV(f, out, *sampleRate, 2); err != nil {
		f.Close()
		log.Fatal(err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s (%.2fs)\n", *output, float64(len(out)/2)/float64(*sampleRate))
}

func resolveScript(path string, inline string) (string, error) {
	if strings.TrimSpace(inline) != "" {
		return strings.ReplaceAll(inline, ";", "\n"), nil
	}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return defaultScript, nil
}
