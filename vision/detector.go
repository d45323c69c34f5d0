package vision

import (
	"fmt"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// PigoDetector is the default FaceDetector backend, backed by the pigo
// pixel-intensity cascade classifier. It is stateless after construction
// and safe for sequential reuse within a job.
type PigoDetector struct {
	classifier *pigo.Pigo
	minQuality float32
}

// NewPigoDetector loads a facefinder cascade from disk.
func NewPigoDetector(cascadePath string, minQuality float64) (*PigoDetector, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade %s: %w", cascadePath, err)
	}

	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}

	return &PigoDetector{
		classifier: classifier,
		minQuality: float32(minQuality),
	}, nil
}

// DetectFaces runs the cascade over a gray8 frame and returns clustered
// detections above the quality floor.
func (d *PigoDetector) DetectFaces(pixels []byte, width, height int) []Box {
	minSize := width / 10
	if minSize < 20 {
		minSize = 20
	}

	params := pigo.CascadeParams{
		MinSize:     minSize,
		MaxSize:     height,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   height,
			Cols:   width,
			Dim:    width,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, 0.2)

	var boxes []Box
	for _, det := range dets {
		if det.Q < d.minQuality {
			continue
		}
		boxes = append(boxes, Box{
			X:     det.Col - det.Scale/2,
			Y:     det.Row - det.Scale/2,
			W:     det.Scale,
			H:     det.Scale,
			Score: det.Q,
		})
	}
	return boxes
}
