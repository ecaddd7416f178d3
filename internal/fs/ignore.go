package fs

import (
	"bufio"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// defaultIgnoreRules keep writes away from version control and tool state.
var defaultIgnoreRules = []string{".git/", StateDirName + "/"}

// loadIgnoreRules reads .gitignore and .aipatch/ignore under root.
func loadIgnoreRules(root string) *ignore.GitIgnore {
	rules := append([]string(nil), defaultIgnoreRules...)
	for _, path := range []string{
		filepath.Join(root, ".gitignore"),
		filepath.Join(root, StateDirName, "ignore"),
	} {
		if lines, err := readIgnoreFile(path); err == nil {
			rules = append(rules, lines...)
		}
	}
	return ignore.CompileIgnoreLines(rules...)
}

func readIgnoreFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
