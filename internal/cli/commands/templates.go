package commands

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed all:templates
var templateFS embed.FS

// copyTemplate copies an embedded template directory to the target path.
// It handles special file renames (e.g., "gitignore" -> ".gitignore").
// Existing files are kept unless force is set.
func copyTemplate(templateName, targetDir string, force bool) error {
	root := path.Join("templates", templateName)

	return fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		if relPath == "" {
			return nil
		}
		// placeholders keep empty directories in the embedded tree
		if d.Name() == ".gitkeep" {
			return os.MkdirAll(filepath.Join(targetDir, filepath.FromSlash(path.Dir(relPath))), 0750)
		}

		// Handle special file renames
		targetPath := filepath.Join(targetDir, filepath.FromSlash(renameSpecialFiles(relPath)))

		if d.IsDir() {
			return os.MkdirAll(targetPath, 0750)
		}

		// Check if file exists
		if !force {
			if _, err := os.Stat(targetPath); err == nil {
				return nil // Skip existing files
			}
		}

		// Read and write file
		content, err := templateFS.ReadFile(p)
		if err != nil {
			return err
		}

		return os.WriteFile(targetPath, content, 0600)
	})
}

// renameSpecialFiles handles files that need renaming (e.g., dotfiles).
func renameSpecialFiles(p string) string {
	// Rename "gitignore" to ".gitignore"
	base := path.Base(p)
	dir := path.Dir(p)

	switch base {
	case "gitignore":
		return path.Join(dir, ".gitignore")
	default:
		return p
	}
}

// listTemplateFiles returns all files in a template for display purposes.
func listTemplateFiles(templateName string) ([]string, error) {
	var files []string
	root := path.Join("templates", templateName)

	err := fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() != ".gitkeep" {
			files = append(files, renameSpecialFiles(strings.TrimPrefix(p, root+"/")))
		}
		return nil
	})

	return files, err
}

// groupTemplateFiles groups files by category for display.
func groupTemplateFiles(files []string) map[string][]string {
	groups := map[string][]string{
		"config": {},
		"seeds":  {},
		"models": {},
		"macros": {},
	}

	for _, f := range files {
		switch {
		case strings.HasPrefix(f, "seeds/"):
			groups["seeds"] = append(groups["seeds"], f)
		case strings.HasPrefix(f, "models/"):
			groups["models"] = append(groups["models"], f)
		case strings.HasPrefix(f, "macros/"):
			groups["macros"] = append(groups["macros"], f)
		default:
			groups["config"] = append(groups["config"], f)
		}
	}

	return groups
}
