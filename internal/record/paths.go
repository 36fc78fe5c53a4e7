package record

import (
	"path/filepath"
	"strings"
)

// Stage names the suffix a pipeline stage gives its output file.
type Stage string

const (
	StageExtract   Stage = "_ekstrak"
	StageCleanse   Stage = "_cleansing"
	StageChunk     Stage = "_chunked"
	StageEmbedding Stage = "_embedding"
)

var stageSuffixes = []Stage{StageExtract, StageCleanse, StageChunk, StageEmbedding}

const ext = ".jsonl"

// DocumentStem returns the source file name without directory or extension.
func DocumentStem(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ExtractPath returns {dataDir}/{stem}/{stem}_ekstrak.jsonl for a source
// document.
func ExtractPath(dataDir, source string) string {
	stem := DocumentStem(source)
	return filepath.Join(dataDir, stem, stem+string(StageExtract)+ext)
}

// StageStem strips the extension and any stage suffix from a stage file name.
func StageStem(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), ext)
	for _, s := range stageSuffixes {
		if strings.HasSuffix(base, string(s)) {
			return strings.TrimSuffix(base, string(s))
		}
	}
	return base
}

// NextPath returns the output path of stage next for the stage file at in.
// The output lives next to the input.
func NextPath(in string, next Stage) string {
	return filepath.Join(filepath.Dir(in), StageStem(in)+string(next)+ext)
}
