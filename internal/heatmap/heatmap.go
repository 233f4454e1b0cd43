// Package heatmap is the image collaborator: it builds a gradient-based
// activation overlay for an uploaded X-ray and restricts the highlights to
// the expected surgery region when one is known.
package heatmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "image/jpeg"

	"postop-monitor/pkg"
)

// ErrImageProcessing wraps any failure in the pipeline. The intake downgrades
// it to advisory text with no artifact.
var ErrImageProcessing = errors.New("image processing failed")

const (
	maxSide      = 512
	borderMargin = 0.02
	minHotspot   = 50
)

// Analyzer writes heatmap artifacts next to the uploads.
type Analyzer struct {
	outDir string
}

func New(outDir string) *Analyzer {
	return &Analyzer{outDir: outDir}
}

// Analyze decodes the image, builds the activation overlay and writes a PNG
// artifact. It returns the analysis text and the artifact path.
func (a *Analyzer) Analyze(path, filename string, info pkg.SurgeryInfo) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("%w: open image: %v", ErrImageProcessing, err)
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		return "", "", fmt.Errorf("%w: decode image: %v", ErrImageProcessing, err)
	}

	gray := toGray(src)
	gray = downscale(gray, maxSide)
	w := gray.Bounds().Dx()
	h := gray.Bounds().Dy()

	activation := gradientMagnitude(gray)
	suppressBorder(activation, w, h)

	roi, regionNote, locationLabel := regionOfInterest(info, w, h)
	if roi != nil {
		maskOutside(activation, w, *roi)
	}
	normalize(activation)

	overlay := colorOverlay(gray, activation)
	hotspots := outlineHotspots(overlay, activation, w, h, roi)

	artifact := filepath.Join(a.outDir, "heatmap_"+strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))+".png")
	out, err := os.Create(artifact)
	if err != nil {
		return "", "", fmt.Errorf("%w: write artifact: %v", ErrImageProcessing, err)
	}
	defer out.Close()
	if err := png.Encode(out, overlay); err != nil {
		return "", "", fmt.Errorf("%w: encode artifact: %v", ErrImageProcessing, err)
	}

	var b strings.Builder
	b.WriteString("X-ray Analysis:\n")
	fmt.Fprintf(&b, "- Image dimensions: %dx%d\n", w, h)
	fmt.Fprintf(&b, "- Highlighted regions (approx.): %d\n", hotspots)
	if regionNote != "" {
		fmt.Fprintf(&b, "- Region focus: %s\n", regionNote)
	}
	if locationLabel != "" {
		fmt.Fprintf(&b, "- Estimated location: %s\n", locationLabel)
	}
	b.WriteString("- Areas of interest outlined in teal within the surgery region and emphasized on the heatmap")
	return b.String(), artifact, nil
}

func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(x, y, color.GrayModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)))
		}
	}
	return out
}

// downscale box-samples the image so neither side exceeds max.
func downscale(src *image.Gray, max int) *image.Gray {
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	if w <= max && h <= max {
		return src
	}
	scale := w
	if h > w {
		scale = h
	}
	factor := (scale + max - 1) / max
	nw, nh := w/factor, h/factor
	out := image.NewGray(image.Rect(0, 0, nw, nh))
	for y := 0; y < nh; y++ {
		for x := 0; x < nw; x++ {
			var sum, count int
			for dy := 0; dy < factor; dy++ {
				for dx := 0; dx < factor; dx++ {
					sx, sy := x*factor+dx, y*factor+dy
					if sx < w && sy < h {
						sum += int(src.GrayAt(sx, sy).Y)
						count++
					}
				}
			}
			out.SetGray(x, y, color.Gray{Y: uint8(sum / count)})
		}
	}
	return out
}

// gradientMagnitude is a Sobel pass: the proxy for model activations.
func gradientMagnitude(img *image.Gray) []int {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	out := make([]int, w*h)
	at := func(x, y int) int {
		if x < 0 {
			x = 0
		}
		if y < 0 {
			y = 0
		}
		if x >= w {
			x = w - 1
		}
		if y >= h {
			y = h - 1
		}
		return int(img.GrayAt(x, y).Y)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := -at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1) +
				at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			if gx < 0 {
				gx = -gx
			}
			if gy < 0 {
				gy = -gy
			}
			out[y*w+x] = (gx + gy) / 2
		}
	}
	return out
}

// suppressBorder zeroes a small margin; scan edges otherwise dominate the
// activation map.
func suppressBorder(act []int, w, h int) {
	m := int(borderMargin * float64(min(w, h)))
	if m < 2 {
		m = 2
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < m || y < m || x >= w-m || y >= h-m {
				act[y*w+x] = 0
			}
		}
	}
}

// regionOfInterest maps surgery keywords to an image region: vertical thirds
// for body area, horizontal halves for side.
func regionOfInterest(info pkg.SurgeryInfo, w, h int) (*image.Rectangle, string, string) {
	if info.Empty() && info.Site == "" && info.Side == "" {
		return nil, "", ""
	}
	st := strings.ToLower(strings.Join([]string{info.SurgeryType, info.Site, info.Side}, " "))

	ysel := image.Rect(0, 0, w, h)
	note := ""
	label := ""
	switch {
	case containsAny(st, []string{"shoulder", "elbow", "wrist", "hand", "clavicle", "lung", "chest", "thorax", "rib"}):
		ysel = image.Rect(0, 0, w, h/3)
		note = "upper"
		if containsAny(st, []string{"lung", "chest", "thorax", "rib"}) {
			label = "Chest/Thorax"
		} else {
			label = "Shoulder/Arm"
		}
	case containsAny(st, []string{"abdomen", "stomach", "liver", "spleen", "kidney"}):
		ysel = image.Rect(0, h/3, w, 2*h/3)
		note = "middle"
		label = "Abdomen"
	case containsAny(st, []string{"hip", "pelvis", "knee", "ankle", "foot", "append", "hernia"}):
		ysel = image.Rect(0, 2*h/3, w, h)
		note = "lower"
		if containsAny(st, []string{"hip", "pelvis"}) {
			label = "Pelvis/Hips"
		} else if containsAny(st, []string{"knee", "ankle", "foot"}) {
			label = "Knee/Leg"
		}
	}

	xsel := image.Rect(0, 0, w, h)
	switch {
	case containsAny(st, []string{"left", "lhs"}):
		xsel = image.Rect(0, 0, w/2, h)
		note = strings.TrimSpace("left " + note)
		if label != "" {
			label = "Left " + label
		}
	case containsAny(st, []string{"right", "rhs"}):
		xsel = image.Rect(w/2, 0, w, h)
		note = strings.TrimSpace("right " + note)
		if label != "" {
			label = "Right " + label
		}
	}

	roi := ysel.Intersect(xsel)
	if roi.Empty() {
		return nil, "", ""
	}
	if note == "" && label == "" && roi == image.Rect(0, 0, w, h) {
		return nil, "", ""
	}
	return &roi, note, label
}

func maskOutside(act []int, w int, roi image.Rectangle) {
	h := len(act) / w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !(image.Point{X: x, Y: y}).In(roi) {
				act[y*w+x] = 0
			}
		}
	}
}

func normalize(act []int) {
	maxVal := 0
	for _, v := range act {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		return
	}
	for i, v := range act {
		act[i] = v * 255 / maxVal
	}
}

// colorOverlay blends a color ramp of the activation over the grayscale
// image (60% image, 40% heat).
func colorOverlay(gray *image.Gray, act []int) *image.RGBA {
	w := gray.Bounds().Dx()
	h := gray.Bounds().Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := int(gray.GrayAt(x, y).Y)
			hr, hg, hb := rampColor(act[y*w+x])
			out.SetRGBA(x, y, color.RGBA{
				R: uint8((g*6 + hr*4) / 10),
				G: uint8((g*6 + hg*4) / 10),
				B: uint8((g*6 + hb*4) / 10),
				A: 255,
			})
		}
	}
	return out
}

// rampColor maps 0..255 onto a dark-violet → teal → yellow ramp.
func rampColor(v int) (int, int, int) {
	switch {
	case v < 85:
		t := v * 3
		return 68 + t*5/100, 1 + t*35/100, 84 + t*15/100
	case v < 170:
		t := (v - 85) * 3
		return 33 + t*10/100, 144 + t*30/100, 140 - t*30/100
	default:
		t := (v - 170) * 3
		return 94 + t*60/100, 201 + t*20/100, 98 - t*30/100
	}
}

// outlineHotspots thresholds the activation at its 90th percentile, finds
// connected components over the minimum area, and outlines their bounding
// boxes in teal. Returns the number of highlighted regions.
func outlineHotspots(overlay *image.RGBA, act []int, w, h int, roi *image.Rectangle) int {
	threshold := percentile(act, 90)
	if threshold <= 0 {
		return 0
	}
	hot := make([]bool, len(act))
	for i, v := range act {
		hot[i] = v >= threshold && v > 0
	}
	visited := make([]bool, len(act))
	teal := color.RGBA{R: 0, G: 200, B: 180, A: 255}
	count := 0
	for start := range hot {
		if !hot[start] || visited[start] {
			continue
		}
		// Flood fill one component, tracking its bounding box.
		stack := []int{start}
		visited[start] = true
		area := 0
		minX, minY, maxX, maxY := w, h, 0, 0
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			area++
			x, y := idx%w, idx/w
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x > maxX {
				maxX = x
			}
			if y > maxY {
				maxY = y
			}
			for _, n := range [4]int{idx - 1, idx + 1, idx - w, idx + w} {
				if n < 0 || n >= len(hot) {
					continue
				}
				if (n == idx-1 && x == 0) || (n == idx+1 && x == w-1) {
					continue
				}
				if hot[n] && !visited[n] {
					visited[n] = true
					stack = append(stack, n)
				}
			}
		}
		if area < minHotspot {
			continue
		}
		count++
		drawRect(overlay, image.Rect(minX, minY, maxX+1, maxY+1), teal)
	}
	return count
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}

// percentile returns the p-th percentile of the non-zero activations.
func percentile(act []int, p int) int {
	nonzero := make([]int, 0, len(act))
	for _, v := range act {
		if v > 0 {
			nonzero = append(nonzero, v)
		}
	}
	if len(nonzero) == 0 {
		return 0
	}
	sort.Ints(nonzero)
	idx := len(nonzero) * p / 100
	if idx >= len(nonzero) {
		idx = len(nonzero) - 1
	}
	return nonzero[idx]
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
