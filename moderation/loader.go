package moderation

import (
	"bufio"
	"embed"
	"io/fs"
	"path"
	"strings"

	"github.com/samber/lo"
)

//go:embed words/*.txt
var wordFiles embed.FS

// WordList is the merged content of the embedded per-language word files.
type WordList struct {
	Languages []string
	Words     []string
}

// LoadEmbeddedWords reads every words/<lang>.txt file shipped with the
// binary. Lines are trimmed, blank lines and # comments skipped, duplicates
// across languages merged.
func LoadEmbeddedWords() (WordList, error) {
	return loadWords(wordFiles, "words")
}

func loadWords(fsys fs.FS, dir string) (WordList, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return WordList{}, err
	}

	var list WordList
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		f, err := fsys.Open(path.Join(dir, entry.Name()))
		if err != nil {
			return WordList{}, err
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			word := strings.TrimSpace(scanner.Text())
			if word == "" || strings.HasPrefix(word, "#") {
				continue
			}
			list.Words = append(list.Words, word)
		}
		if err := scanner.Err(); err != nil {
			_ = f.Close()
			return WordList{}, err
		}
		_ = f.Close()
		list.Languages = append(list.Languages, strings.TrimSuffix(entry.Name(), ".txt"))
	}

	list.Words = lo.Uniq(list.Words)
	return list, nil
}
