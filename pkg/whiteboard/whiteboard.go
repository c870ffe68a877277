package whiteboard

import (
	"context"
	"encoding/json"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is one stroke piece, drawn from PrevPos to CurrentPos.
type Segment struct {
	PrevPos    Point `json:"prevPos"`
	CurrentPos Point `json:"currentPos"`
}

type DrawConfig struct {
	LineSize              json.Number `json:"lineSize,omitempty"`
	PencilColor           string      `json:"pencilColor"`
	CanvasBackgroundColor string      `json:"canvasBackgroundColor"`
	Mode                  string      `json:"mode"`
}

// Board is the replayable whiteboard of one class. Config is nil until the
// teacher submits one.
type Board struct {
	Config *DrawConfig `json:"config"`
	Data   []Segment   `json:"data"`
}

func emptyBoard() *Board {
	return &Board{Data: []Segment{}}
}

// Store keeps whiteboard state per class. Get on an unknown class returns
// an empty board, never an error.
type Store interface {
	Get(ctx context.Context, classID string) (*Board, error)
	SetConfig(ctx context.Context, classID string, config DrawConfig) error
	Append(ctx context.Context, classID string, segment Segment) error
	Clear(ctx context.Context, classID string) error
	Delete(ctx context.Context, classID string) error
}
