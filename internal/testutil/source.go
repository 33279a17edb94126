package testutil

import "forumsync/internal/importer"

// Files builds source files from alternating path and content strings.
func Files(pathContent ...string) []importer.SourceFile {
	if len(pathContent)%2 != 0 {
		panic("testutil.Files: odd number of arguments")
	}
	files := make([]importer.SourceFile, 0, len(pathContent)/2)
	for i := 0; i < len(pathContent); i += 2 {
		files = append(files, importer.SourceFile{RelativePath: pathContent[i], Content: []byte(pathContent[i+1])})
	}
	return files
}
