package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"ws-class-server/pkg/types"
)

// StaticDirectory serves classes without a database. Every class id is
// treated as scheduled the first time it is seen; it is used for local
// development when no database url is configured.
type StaticDirectory struct {
	lock    sync.Mutex
	classes map[string]*types.ClassDetails
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{classes: make(map[string]*types.ClassDetails)}
}

func (d *StaticDirectory) class(classID string) *types.ClassDetails {
	c, ok := d.classes[classID]
	if !ok {
		c = &types.ClassDetails{ID: classID, CreatedAt: time.Now()}
		d.classes[classID] = c
	}
	return c
}

func (d *StaticDirectory) GetClass(_ context.Context, classID string) (*types.ClassDetails, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	c := *d.class(classID)
	return &c, nil
}

func (d *StaticDirectory) MarkEnded(_ context.Context, classID string) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	c := d.class(classID)
	if c.EndedAt == nil {
		now := time.Now()
		c.EndedAt = &now
	}
	return nil
}

func (d *StaticDirectory) LiveClasses(_ context.Context) ([]types.ClassDetails, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	var live []types.ClassDetails
	for _, c := range d.classes {
		if !c.Ended() {
			live = append(live, *c)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		if !live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].CreatedAt.Before(live[j].CreatedAt)
		}
		return live[i].ID < live[j].ID
	})
	return live, nil
}
