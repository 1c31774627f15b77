package imagegen

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel = "gpt-image-1"
	SizeSquare   = "1024x1024"
)

// SourceImage is one input image of an edit call.
type SourceImage struct {
	Data     []byte
	MIMEType string
	Name     string
}

// EditRequest asks the image edit API to combine Images under Prompt.
type EditRequest struct {
	Images []SourceImage
	Prompt string
	Size   string
}

// Editor performs a single image edit call, including its own retry policy.
type Editor interface {
	Edit(ctx context.Context, req EditRequest) (*openai.ImageResponse, error)
}
