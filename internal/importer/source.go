package importer

import "context"

// SourceFile is one file handed to the importer by a Source.
// RelativePath always uses forward slashes.
type SourceFile struct {
	RelativePath string
	Content      []byte
}

// Source lists the files of one source tree with ignore rules already applied.
type Source interface {
	ListFiles(ctx context.Context) ([]SourceFile, error)
}
