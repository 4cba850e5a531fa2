package meeting

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/khrees2412/callscreen/pkg/models"
)

// Linker creates a video meeting for an interview
type Linker interface {
	CreateLink(ctx context.Context, candidateID, jobID int64, slot *models.Slot) (string, error)
}

// Generator issues Google Meet style links without calling the calendar API
type Generator struct {
	Prefix string
	Host   string
}

// NewGenerator creates a link generator; an empty prefix uses "tech-recruit"
func NewGenerator(prefix string) *Generator {
	if prefix == "" {
		prefix = "tech-recruit"
	}
	return &Generator{Prefix: prefix, Host: "https://meet.google.com"}
}

// CreateLink returns a unique meeting link
func (g *Generator) CreateLink(ctx context.Context, candidateID, jobID int64, slot *models.Slot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate meeting id: %w", err)
	}
	eventID := strings.ReplaceAll(id.String(), "-", "")[:10]
	return fmt.Sprintf("%s/%s-%s", g.Host, g.Prefix, eventID), nil
}
