// Command convert turns one touch container into a viewer recording
// without going through the server or its cache.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"touchview/internal/decoder"
	"touchview/internal/presenter"
)

func main() {
	imageStride := flag.Int("image-stride", 1, "keep every Nth camera frame")
	output := flag.String("o", "", "output recording path (default: input with .rec extension)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <container.touch>\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if *imageStride < 1 {
		fmt.Fprintln(os.Stderr, "error: -image-stride must be at least 1")
		os.Exit(2)
	}

	input := flag.Arg(0)
	if _, err := os.Stat(input); err != nil {
		fmt.Fprintf(os.Stderr, "error: container not found: %s\n", input)
		os.Exit(1)
	}

	dest := *output
	if dest == "" {
		dest = strings.TrimSuffix(input, filepath.Ext(input)) + ".rec"
	}

	converter := presenter.NewRecordingConverter(decoder.DefaultRegistry(), presenter.DownsampleOptions{
		ImageStride: *imageStride,
	})
	converter.OnStats = func(stats decoder.Stats) {
		fmt.Printf("decoded %d event(s), skipped %d of %d attempted\n",
			stats.Yielded, stats.Skipped, stats.Attempted)
	}

	if err := converter.Convert(input, dest); err != nil {
		fmt.Fprintf(os.Stderr, "error: conversion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", dest)
}
