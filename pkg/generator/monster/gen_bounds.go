//go:build ignore

// gen_bounds scans parts/*.png and writes the opaque bounding box of each
// part to bounds.go.
package main

import (
	"bytes"
	"fmt"
	"go/format"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func main() {
	files, err := filepath.Glob("parts/*.png")
	if err != nil {
		log.Fatal(err)
	}
	sort.Strings(files)
	var b bytes.Buffer
	b.WriteString("// Code generated by gen_bounds.go; DO NOT EDIT.\n\npackage monster\n\nimport \"image\"\n\n")
	b.WriteString("// partBounds holds the opaque bounding box of every embedded part.\n")
	b.WriteString("var partBounds = map[string]image.Rectangle{\n")
	for _, file := range files {
		r, err := opaqueBounds(file)
		if err != nil {
			log.Fatalf("%s: %v", file, err)
		}
		name := strings.TrimSuffix(filepath.Base(file), ".png")
		fmt.Fprintf(&b, "\t%q: image.Rect(%d, %d, %d, %d),\n", name, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
	}
	b.WriteString("}\n")
	src, err := format.Source(b.Bytes())
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile("bounds.go", src, 0o644); err != nil {
		log.Fatal(err)
	}
}

func opaqueBounds(file string) (image.Rectangle, error) {
	f, err := os.Open(file)
	if err != nil {
		return image.Rectangle{}, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return image.Rectangle{}, err
	}
	var r image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a > 0 {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r, nil
}
