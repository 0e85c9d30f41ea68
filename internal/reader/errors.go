package reader

import "fmt"

// UnsupportedFormatError is returned when a filename extension is not one
// of SupportedExtensions.
type UnsupportedFormatError struct {
	Filename string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Filename)
}

// DocumentOpenError is returned when a container could not be opened or
// parsed at all.
type DocumentOpenError struct {
	Filename string
	Format   Format
	Err      error
}

func (e *DocumentOpenError) Error() string {
	return fmt.Sprintf("failed to open %s document %s: %v", e.Format, e.Filename, e.Err)
}

func (e *DocumentOpenError) Unwrap() error { return e.Err }

// SectionLoadError describes one spine entry or page that was skipped.
// Extraction recovers from it and records it as a warning.
type SectionLoadError struct {
	Ref string
	Err error
}

func (e *SectionLoadError) Error() string {
	return fmt.Sprintf("failed to load section %s: %v", e.Ref, e.Err)
}

func (e *SectionLoadError) Unwrap() error { return e.Err }
