package signaling

import (
	"context"

	"ws-class-server/pkg/types"
	"ws-class-server/pkg/whiteboard"
)

// Whiteboard state lives in the store keyed by class id. Reading a board
// never fails, even for a class that was never started; writing one needs
// the class to be live, so end-class always finds what it has to delete.

func (d *Dispatcher) getDrawingBoard(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	board, err := d.boards.Get(ctx, req.ClassID)
	if err != nil {
		return nil, storageError(req.ClassID, err)
	}
	return &reply{EventTakeDrawingBoard, board}, nil
}

func (d *Dispatcher) setDrawingConfig(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	var config whiteboard.DrawConfig
	if err := req.decodeInto(&config); err != nil {
		return nil, err
	}
	return nil, d.updateBoard(ctx, req.ClassID, func(ctx context.Context) error {
		return d.boards.SetConfig(ctx, req.ClassID, config)
	}, EventDrawingConfig, config)
}

func (d *Dispatcher) sendDrawing(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	var segment whiteboard.Segment
	if err := req.decodeInto(&segment); err != nil {
		return nil, err
	}
	return nil, d.updateBoard(ctx, req.ClassID, func(ctx context.Context) error {
		return d.boards.Append(ctx, req.ClassID, segment)
	}, EventDrawingData, segment)
}

func (d *Dispatcher) clearDrawing(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	return nil, d.updateBoard(ctx, req.ClassID, func(ctx context.Context) error {
		return d.boards.Clear(ctx, req.ClassID)
	}, EventClearDrawing, nil)
}

// newTextbox is relayed to students but never logged.
func (d *Dispatcher) newTextbox(ctx context.Context, _ types.ConnectionID, req *request) (*reply, error) {
	var textbox textboxPayload
	if err := req.decodeInto(&textbox); err != nil {
		return nil, err
	}
	return nil, d.updateBoard(ctx, req.ClassID, nil, EventTextboxCreated, textbox)
}

// updateBoard applies write under the class lock and then fans event out, so
// students see updates in log order.
func (d *Dispatcher) updateBoard(ctx context.Context, classID string, write func(ctx context.Context) error, event string, data interface{}) error {
	rm, unlock, err := d.lockedRoom(classID)
	if err != nil {
		return err
	}
	defer unlock()

	if write != nil {
		if err := write(ctx); err != nil {
			return storageError(classID, err)
		}
	}
	d.broadcastStudents(rm, "", event, data)
	return nil
}
