package launcher

import (
	"context"
	"fmt"
	"path"

	"github.com/viant/afs/file"
)

// ensureParent creates the directory holding location
func (s *Service) ensureParent(ctx context.Context, location string) error {
	dir := path.Dir(location)
	exists, _ := s.fs.Exists(ctx, dir)
	if exists {
		return nil
	}
	if err := s.fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
		return fmt.Errorf("failed to create %v: %w", dir, err)
	}
	return nil
}
