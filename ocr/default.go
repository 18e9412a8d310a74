package ocr

import (
	"context"
	"sync"
)

var (
	defaultMu     sync.RWMutex
	defaultEngine Engine = noopEngine{}
)

// DefaultEngine returns the process default OCR engine. Importing
// ocr/tesseract installs Tesseract; otherwise a no-op engine is returned.
func DefaultEngine() Engine {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultEngine
}

// SetDefaultEngine sets the process default OCR engine.
func SetDefaultEngine(engine Engine) {
	if engine == nil {
		return
	}
	defaultMu.Lock()
	defaultEngine = engine
	defaultMu.Unlock()
}

type noopEngine struct{}

func (noopEngine) Name() string {
	return "noop"
}

func (noopEngine) Recognize(ctx context.Context, input Input) (Result, error) {
	return Result{InputID: input.ID}, nil
}
