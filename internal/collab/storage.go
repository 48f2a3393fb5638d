package collab

import (
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore — файловое хранилище проекта: рабочая зона и холодный архив.
// Пути строятся как <engagement_id>/<подпапка>/<имя файла>.
type FileStore struct {
	BaseDir    string
	ArchiveDir string
}

func NewFileStore(baseDir, archiveDir string) *FileStore {
	return &FileStore{BaseDir: baseDir, ArchiveDir: archiveDir}
}

// Save пишет файл в рабочую зону, создавая промежуточные каталоги.
func (s *FileStore) Save(relPath string, content []byte) error {
	full := filepath.Join(s.BaseDir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, content, 0o644)
}

// Remove удаляет файл из рабочей зоны; отсутствие файла — не ошибка.
func (s *FileStore) Remove(relPath string) error {
	err := os.Remove(filepath.Join(s.BaseDir, relPath))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// List возвращает относительные пути всех файлов под префиксом.
func (s *FileStore) List(prefix string) ([]string, error) {
	root := filepath.Join(s.BaseDir, prefix)
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.BaseDir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// MoveToArchive переносит все файлы под префиксом в холодный архив.
// Возвращает перенесённые пути.
func (s *FileStore) MoveToArchive(prefix string) ([]string, error) {
	files, err := s.List(prefix)
	if err != nil {
		return nil, err
	}

	var moved []string
	for _, rel := range files {
		src := filepath.Join(s.BaseDir, rel)
		dst := filepath.Join(s.ArchiveDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return moved, err
		}
		if err := os.Rename(src, dst); err != nil {
			return moved, err
		}
		moved = append(moved, rel)
	}
	return moved, nil
}

// WriteArchive пишет файл сразу в архив (манифест и т.п.).
func (s *FileStore) WriteArchive(relPath string, content []byte) error {
	full := filepath.Join(s.ArchiveDir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, content, 0o644)
}
