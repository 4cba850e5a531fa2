package meeting

import (
	"context"
	"regexp"
	"testing"

	"github.com/khrees2412/callscreen/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLink(t *testing.T) {
	g := NewGenerator("")
	slot := &models.Slot{ID: 1}

	first, err := g.CreateLink(context.Background(), 1, 2, slot)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^https://meet\.google\.com/tech-recruit-[0-9a-f]{10}$`), first)

	second, err := g.CreateLink(context.Background(), 1, 2, slot)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestCreateLinkCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGenerator("acme").CreateLink(ctx, 1, 2, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
