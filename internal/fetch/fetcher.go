// Package fetch retrieves raw document bytes for a storage reference.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"docverify/internal/common"
)

// Fetcher resolves an opaque storage reference to the stored bytes.
type Fetcher interface {
	Fetch(ctx context.Context, sourceRef string) ([]byte, error)
}

// DirFetcher serves a filesystem-backed object store: references resolve
// to paths under a fixed root. It has no side effects beyond the read.
type DirFetcher struct {
	root   string
	logger *slog.Logger
}

func NewDirFetcher(root string, logger *slog.Logger) *DirFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirFetcher{root: root, logger: logger}
}

// Fetch reads the referenced object. A dangling reference is fatal
// (KindNotFound); any other IO failure is transient and retryable.
func (f *DirFetcher) Fetch(ctx context.Context, sourceRef string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.NewError(common.KindTransient, "fetch aborted", err)
	}
	if sourceRef == "" || !filepath.IsLocal(sourceRef) {
		return nil, common.Errorf(common.KindNotFound, "invalid source reference %q", sourceRef)
	}

	path := filepath.Join(f.root, filepath.FromSlash(sourceRef))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			f.logger.Warn("source reference does not resolve", "source_ref", sourceRef)
			return nil, common.NewError(common.KindNotFound, fmt.Sprintf("source %q not found", sourceRef), err)
		}
		return nil, common.NewError(common.KindTransient, fmt.Sprintf("read source %q", sourceRef), err)
	}
	f.logger.Debug("fetched source", "source_ref", sourceRef, "bytes", len(data))
	return data, nil
}
