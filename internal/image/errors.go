package image

import "errors"

var (
	ErrNoMatchFound      = errors.New("no matching image found")
	ErrAmbiguousMatch    = errors.New("more than one matching image")
	ErrCatalogCorruption = errors.New("image catalog contradicts query")
)
