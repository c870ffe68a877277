package types

import (
	"errors"
	"time"
)

type Person struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ClassDetails is the directory record of a class. EndedAt is nil while the
// class has not been ended.
type ClassDetails struct {
	ID        string     `json:"id"`
	Teacher   Person     `json:"teacher"`
	Subject   *Subject   `json:"subject,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	EndedAt   *time.Time `json:"endedAt"`
}

func (c *ClassDetails) Ended() bool {
	return c.EndedAt != nil
}

// ErrClassNotFound is returned by class directories for unknown class ids.
var ErrClassNotFound = errors.New("class not found")
