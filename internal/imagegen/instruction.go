package imagegen

import (
	"fmt"
	"strings"
)

// BuildTryOnInstruction returns the compositing prompt for the three-image
// edit: garment front, garment back, then the person photo.
func BuildTryOnInstruction(productName, category string) string {
	parts := []string{
		"Image 1 shows the front of a garment and image 2 shows its back.",
		"Image 3 is a photo of a person.",
	}
	garment := "the garment"
	if name := strings.TrimSpace(productName); name != "" {
		garment = fmt.Sprintf("the garment %q", name)
	}
	if category = strings.TrimSpace(category); category != "" {
		garment += " (" + category + ")"
	}
	parts = append(parts,
		fmt.Sprintf("Dress the person from image 3 in %s, replacing the clothing it covers.", garment),
		"Keep the person's face, hair, body shape, pose and background unchanged.",
		"Match the garment's colour, fabric, print and fit exactly, with natural folds and lighting.",
		"Output a single photorealistic, front-facing full view of the person. No text, no borders.",
	)
	return strings.Join(parts, " ")
}
