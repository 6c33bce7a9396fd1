package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/falk/ndsfmt-go/pkg/bmg"
	"github.com/falk/ndsfmt-go/pkg/fnt"
	"github.com/falk/ndsfmt-go/pkg/lz10"
	"github.com/falk/ndsfmt-go/pkg/narc"
	"github.com/falk/ndsfmt-go/pkg/rom"
	"github.com/falk/ndsfmt-go/pkg/sdat"
)

func main() {
	extractDir := flag.String("x", "", "Directory to extract embedded files into")
	decompress := flag.Bool("d", false, "Treat the input as raw LZ10 data and decompress it")
	flag.Parse()

	fmt.Println("ndsfmt")

	args := flag.Args()
	if len(args) == 0 {
		fmt.Println("Usage: ndsfmt [options] <file>")
		return
	}

	inputPath := args[0]
	fmt.Printf("Reading %s...\n", inputPath)

	data, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		return
	}

	if *decompress {
		decompressFile(inputPath, data)
		return
	}

	switch {
	case len(data) >= 4 && string(data[:4]) == "NARC":
		processNARC(inputPath, data, *extractDir)
	case len(data) >= 4 && string(data[:4]) == "SDAT":
		processSDAT(inputPath, data)
	case len(data) >= 8 && string(data[:8]) == "MESGbmg1":
		processBMG(inputPath, data)
	case len(data) >= 0x200:
		// A ROM has no magic of its own; try parsing it as one and report
		// the ROM parse error if that fails.
		processROM(inputPath, data, *extractDir)
	default:
		fmt.Println("Unrecognized file format; expected a ROM (.nds), NARC, SDAT, or BMG file.")
	}
}

func processROM(path string, data []byte, extractDir string) {
	r, err := rom.Load(data)
	if err != nil {
		fmt.Printf("Error parsing ROM: %v\n", err)
		return
	}
	fmt.Printf("ROM %q (%s), %d bytes, %d files\n", r.Name, string(r.IDCode[:]), len(data), len(r.Files))

	if extractDir == "" {
		return
	}
	fmt.Printf("Extracting files into %s...\n", extractDir)
	if err := extractTree(r.Filenames, r.Files, extractDir); err != nil {
		fmt.Printf("Error extracting: %v\n", err)
	}
}

func processNARC(path string, data []byte, extractDir string) {
	n, err := narc.Load(data)
	if err != nil {
		fmt.Printf("Error parsing NARC: %v\n", err)
		return
	}
	fmt.Printf("NARC with %d files\n", len(n.Files))

	if extractDir == "" {
		return
	}
	fmt.Printf("Extracting files into %s...\n", extractDir)
	if err := extractTree(n.Root, n.Files, extractDir); err != nil {
		fmt.Printf("Error extracting: %v\n", err)
	}
}

func processSDAT(path string, data []byte) {
	s, err := sdat.Load(data)
	if err != nil {
		fmt.Printf("Error parsing SDAT: %v\n", err)
		return
	}
	fmt.Printf("SDAT with %d sequences, %d banks, %d wave archives, %d streams\n",
		len(s.Sequences), len(s.Banks), len(s.WaveArchives), len(s.Streams))
	for _, e := range s.Sequences {
		if e.Name != "" {
			fmt.Printf("  seq  %s\n", e.Name)
		}
	}
	for _, e := range s.Banks {
		if e.Name != "" {
			fmt.Printf("  bank %s\n", e.Name)
		}
	}
}

func processBMG(path string, data []byte) {
	b, err := bmg.Load(data)
	if err != nil {
		fmt.Printf("Error parsing BMG: %v\n", err)
		return
	}
	fmt.Printf("BMG id=%d, %d messages, %d scripts\n", b.ID, len(b.Messages), len(b.Scripts))
	for i, msg := range b.Messages {
		if msg.IsNull {
			continue
		}
		var sb strings.Builder
		for _, part := range msg.Parts {
			if t, ok := part.(bmg.Text); ok {
				sb.WriteString(string(t))
			}
		}
		fmt.Printf("  [%d] %s\n", i, sb.String())
	}
}

func decompressFile(path string, data []byte) {
	out, err := lz10.Decompress(data)
	if err != nil {
		fmt.Printf("Error decompressing: %v\n", err)
		return
	}
	outPath := path + ".dec"
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		fmt.Printf("Error writing %s: %v\n", outPath, err)
		return
	}
	fmt.Printf("Wrote %d bytes to %s\n", len(out), outPath)
}

// extractTree walks a parsed filename tree (shared by ROM and NARC, see
// pkg/fnt) and writes every file it names under dir, preserving the
// directory structure.
func extractTree(root *fnt.Folder, files [][]byte, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return walkFolder(root, dir, files)
}

func walkFolder(f *fnt.Folder, dir string, files [][]byte) error {
	for i, name := range f.Files {
		id := f.FileID(i)
		if int(id) >= len(files) {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), files[id], 0o644); err != nil {
			return err
		}
	}
	for _, sub := range f.Subfolders {
		subDir := filepath.Join(dir, sub.Name)
		if err := os.MkdirAll(subDir, 0o755); err != nil {
			return err
		}
		if err := walkFolder(sub, subDir, files); err != nil {
			return err
		}
	}
	return nil
}
