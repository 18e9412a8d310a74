// Package ocr defines the abstraction layer for plugging OCR engines (for
// example Tesseract or a cloud service) into plate recognition. The
// interfaces are small and transport-agnostic so engines can be backed by
// native libraries or remote APIs without leaking provider-specific concerns
// into callers.
package ocr
