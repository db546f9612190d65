package world

import "errors"

var (
	ErrInvalidDimensions = errors.New("invalid grid dimensions")
	ErrPassabilitySize   = errors.New("passability grid size mismatch")
	ErrLayerSize         = errors.New("layer content size mismatch")
	ErrLayerOutOfRange   = errors.New("layer index out of range")
	ErrOutOfBounds       = errors.New("coordinate out of bounds")
	ErrCellOccupied      = errors.New("cell already occupied")
)
