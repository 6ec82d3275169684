package resolve

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	getter "github.com/hashicorp/go-getter"

	"github.com/geoknoesis/semlift-go/errors"
)

var forcedGetters = []string{"git::", "hg::", "s3::", "gcs::"}

func isForcedGetter(uri string) bool {
	for _, prefix := range forcedGetters {
		if strings.HasPrefix(uri, prefix) {
			return true
		}
	}
	return false
}

// Getter fetches a single resource through go-getter. A "//sub/path" suffix
// selects a file inside a fetched repository or archive:
//
//	git::https://github.com/org/plans.git//lift/buildings.yaml?ref=v1.2.0
type Getter struct {
	// TempDir is the parent directory of scratch checkouts; empty uses os.TempDir.
	TempDir string
}

// Fetch downloads src into a scratch directory and returns the file bytes.
func (g *Getter) Fetch(ctx context.Context, src string) ([]byte, error) {
	source, subPath := getter.SourceDirSubdir(src)

	scratch, err := os.MkdirTemp(g.TempDir, "semlift-get-*")
	if err != nil {
		return nil, errors.Wrap(err, "create scratch directory")
	}
	defer os.RemoveAll(scratch)

	client := &getter.Client{
		Ctx:     ctx,
		Src:     source,
		Dst:     filepath.Join(scratch, "artifact"),
		Mode:    getter.ClientModeFile,
		Getters: getter.Getters,
	}
	if subPath != "" {
		client.Mode = getter.ClientModeDir
	}
	if err := client.Get(); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "fetch %s", src), errors.ErrFetch)
	}

	target := client.Dst
	if subPath != "" {
		target = filepath.Join(client.Dst, filepath.FromSlash(subPath))
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, notFoundOr(err, src)
	}
	return data, nil
}
