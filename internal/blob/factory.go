package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"carboncore/internal/infra/blob/fs"
	memorystore "carboncore/internal/infra/blob/memory"
	infraS3 "carboncore/internal/infra/blob/s3"
)

// openers maps CARBONCORE_BLOB_DRIVER values to backends. The fs backend is
// rooted at CARBONCORE_BLOB_FS_ROOT (./blobdata when empty); s3 reads the
// CARBONCORE_BLOB_S3_* variables.
var openers = map[Driver]func(context.Context) (Store, error){
	DriverFilesystem: func(context.Context) (Store, error) {
		return NewFilesystem(os.Getenv("CARBONCORE_BLOB_FS_ROOT"))
	},
	DriverS3: func(ctx context.Context) (Store, error) {
		return infraS3.OpenFromEnv(ctx)
	},
	DriverMemory: func(context.Context) (Store, error) {
		return NewMemory(), nil
	},
}

// Open returns the backend named by CARBONCORE_BLOB_DRIVER, the filesystem
// when unset.
func Open(ctx context.Context) (Store, error) {
	driver := Driver(strings.ToLower(strings.TrimSpace(os.Getenv("CARBONCORE_BLOB_DRIVER"))))
	if driver == "" {
		driver = DriverFilesystem
	}
	open, ok := openers[driver]
	if !ok {
		return nil, fmt.Errorf("unknown blob driver %q", driver)
	}
	return open(ctx)
}

// NewFilesystem returns a store writing files under root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns a process-local store, used for tests and batch runs
// that discard their summaries.
func NewMemory() Store { return memorystore.New() }
