// Package rekognition implements ocr.Engine on top of AWS Rekognition
// DetectText.
package rekognition

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/wudi/platekit/ocr"
)

// DetectTextAPI is the subset of *rekognition.Client used by the engine.
type DetectTextAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// Engine sends each variant to Rekognition. The AWS client is safe for
// concurrent use, so one Engine serves the whole fan-out.
type Engine struct {
	client DetectTextAPI
	// MinConfidence drops LINE detections scored below it (0-100 scale).
	MinConfidence float32
}

// NewEngine wraps a Rekognition client.
func NewEngine(client DetectTextAPI) *Engine {
	return &Engine{client: client, MinConfidence: 50}
}

// NewFromConfig builds the engine from a loaded AWS configuration.
func NewFromConfig(cfg aws.Config) *Engine {
	return NewEngine(rekognition.NewFromConfig(cfg))
}

func (e *Engine) Name() string { return "rekognition" }

// Recognize joins the top-level LINE detections in reading order. The
// confidence is their mean, scaled to [0,1].
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if e.client == nil {
		return ocr.Result{}, errors.New("rekognition client is not configured")
	}
	out, err := e.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: in.Image},
	})
	if err != nil {
		return ocr.Result{}, fmt.Errorf("detect text: %w", err)
	}

	var (
		lines []string
		words []ocr.TextWord
		sum   float64
	)
	for _, d := range out.TextDetections {
		text := strings.TrimSpace(aws.ToString(d.DetectedText))
		if text == "" {
			continue
		}
		conf := aws.ToFloat32(d.Confidence)
		switch d.Type {
		case types.TextTypesLine:
			if d.ParentId != nil || conf < e.MinConfidence {
				continue
			}
			lines = append(lines, text)
			sum += float64(conf) / 100
		case types.TextTypesWord:
			words = append(words, ocr.TextWord{Text: text, Confidence: float64(conf) / 100})
		}
	}
	if len(lines) == 0 {
		return ocr.Result{InputID: in.ID}, nil
	}
	return ocr.Result{
		InputID:    in.ID,
		Text:       strings.Join(lines, " "),
		Confidence: min(1, sum/float64(len(lines))),
		Words:      words,
	}, nil
}
