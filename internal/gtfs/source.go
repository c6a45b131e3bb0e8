package gtfs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/passbi/passbi_chart/internal/models"
	"go.uber.org/zap"
)

// FileSource loads a feed straight from a GTFS ZIP file or extracted directory
type FileSource struct {
	path   string
	parser *Parser
}

// NewFileSource creates a source reading the GTFS feed at path
func NewFileSource(path string, logger *zap.Logger) *FileSource {
	return &FileSource{path: path, parser: NewParser(logger)}
}

// Name identifies the source in logs and health output
func (s *FileSource) Name() string {
	return "gtfs:" + s.path
}

// Load parses the feed. Every load gets a fresh version.
func (s *FileSource) Load(ctx context.Context) (*models.Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("GTFS path not readable: %w", err)
	}

	var feed *models.Feed
	if info.IsDir() {
		feed, err = s.parser.ParseDir(s.path)
	} else {
		feed, err = s.parser.ParseZip(s.path)
	}
	if err != nil {
		return nil, err
	}

	feed.Version = uuid.NewString()
	feed.LoadedAt = time.Now()
	return feed, nil
}
