// Package events carries the image/process trigger from the submission path
// to the background processor.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ImageProcessName is the event that starts a processor run.
const ImageProcessName = "image/process"

// ImageProcess is the payload of an image/process event.
type ImageProcess struct {
	ImageURL  string `json:"imageUrl"`
	ImgMD5    string `json:"imgMD5"`
	ProductID int    `json:"productId"`
	JobID     string `json:"TOIJobId"`
}

func (e ImageProcess) Validate() error {
	switch {
	case e.JobID == "":
		return errors.New("events: missing TOIJobId")
	case e.ImageURL == "":
		return errors.New("events: missing imageUrl")
	case e.ProductID <= 0:
		return errors.New("events: invalid productId")
	}
	return nil
}

// Envelope is the wire form of every event.
type Envelope struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// Encode wraps the payload in an envelope.
func Encode(ev ImageProcess) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Name: ImageProcessName, Data: data})
}

// Decode parses an envelope and its image/process payload.
func Decode(raw []byte) (ImageProcess, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ImageProcess{}, fmt.Errorf("events: decode envelope: %w", err)
	}
	if env.Name != ImageProcessName {
		return ImageProcess{}, fmt.Errorf("events: unexpected event %q", env.Name)
	}
	var ev ImageProcess
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		return ImageProcess{}, fmt.Errorf("events: decode %s: %w", env.Name, err)
	}
	return ev, ev.Validate()
}

// Dispatcher publishes image/process events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev ImageProcess) error
}

// Handler consumes one image/process event.
type Handler func(ctx context.Context, ev ImageProcess) error
