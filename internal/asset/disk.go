package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minyeamer/gspread/internal/logger"
	"github.com/minyeamer/gspread/internal/store/gormstore"
)

type folderModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name;uniqueIndex"`
	Shared    bool      `gorm:"column:shared"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (folderModel) TableName() string { return "asset_folders" }

type fileModel struct {
	ID        string     `gorm:"column:id;primaryKey"`
	FolderID  string     `gorm:"column:folder_id;index"`
	Name      string     `gorm:"column:name"`
	MimeType  string     `gorm:"column:mime_type"`
	Size      int64      `gorm:"column:size"`
	Trashed   bool       `gorm:"column:trashed;index"`
	TrashedAt *time.Time `gorm:"column:trashed_at"`
	CreatedAt time.Time  `gorm:"column:created_at"`
}

func (fileModel) TableName() string { return "asset_files" }

func (m folderModel) toFolder() Folder {
	return Folder{ID: m.ID, Name: m.Name, Shared: m.Shared, CreatedAt: m.CreatedAt}
}

func (m fileModel) toFile() File {
	return File{ID: m.ID, FolderID: m.FolderID, Name: m.Name, MimeType: m.MimeType, Size: m.Size, Trashed: m.Trashed, CreatedAt: m.CreatedAt}
}

// DiskStore keeps blobs under Root and the folder/file index in SQLite.
type DiskStore struct {
	root string
	host string
	db   *gorm.DB
	now  func() time.Time
}

var _ Store = (*DiskStore)(nil)

type DiskOptions struct {
	Root       string
	IndexPath  string
	PublicHost string
	Now        func() time.Time
}

func NewDiskStore(opts DiskOptions) (*DiskStore, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, fmt.Errorf("asset root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	indexPath := strings.TrimSpace(opts.IndexPath)
	if indexPath == "" {
		indexPath = filepath.Join(root, "index.db")
	}
	db, err := gormstore.Open(indexPath, &folderModel{}, &fileModel{})
	if err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &DiskStore{root: root, host: opts.PublicHost, db: db, now: now}, nil
}

func (s *DiskStore) EnsureFolder(ctx context.Context, name string, mode IfExists) (Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Folder{}, &StoreError{Op: "ensure folder", Cause: errors.New("folder name cannot be empty")}
	}
	var m folderModel
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&m).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		m = folderModel{ID: uuid.NewString(), Name: name, Shared: true, CreatedAt: s.now()}
		if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
			return Folder{}, &StoreError{Op: "create folder", Folder: name, Cause: err}
		}
		logger.Infof("asset: created folder %q (%s)", name, m.ID)
		return m.toFolder(), nil
	case err != nil:
		return Folder{}, &StoreError{Op: "lookup folder", Folder: name, Cause: err}
	}
	folder := m.toFolder()
	if mode == IfExistsReplace {
		if err := s.Clear(ctx, folder); err != nil {
			return Folder{}, err
		}
	}
	return folder, nil
}

func (s *DiskStore) Save(ctx context.Context, folder Folder, blob Blob) (Reference, error) {
	if folder.ID == "" {
		return Reference{}, &StoreError{Op: "save", Cause: errors.New("folder has no id")}
	}
	if len(blob.Bytes) == 0 {
		return Reference{}, &StoreError{Op: "save", Folder: folder.Name, Cause: errors.New("empty blob")}
	}
	id := uuid.NewString()
	if err := writeFileAtomic(s.blobPath(id), blob.Bytes); err != nil {
		return Reference{}, &StoreError{Op: "write blob", Folder: folder.Name, Cause: err}
	}
	m := fileModel{
		ID:        id,
		FolderID:  folder.ID,
		Name:      blob.Name,
		MimeType:  blob.MimeType,
		Size:      int64(len(blob.Bytes)),
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		_ = os.Remove(s.blobPath(id))
		return Reference{}, &StoreError{Op: "index file", Folder: folder.Name, Cause: err}
	}
	return Reference{FileID: id, URL: ReferenceURL(s.host, id)}, nil
}

func (s *DiskStore) Clear(ctx context.Context, folder Folder) error {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&fileModel{}).
		Where("folder_id = ? AND trashed = ?", folder.ID, false).
		Updates(map[string]any{"trashed": true, "trashed_at": now})
	if res.Error != nil {
		return &StoreError{Op: "clear folder", Folder: folder.Name, Cause: res.Error}
	}
	logger.Infof("asset: moved %d files of %q to trash", res.RowsAffected, folder.Name)
	return nil
}

func (s *DiskStore) PurgeTrash(ctx context.Context) error {
	var trashed []fileModel
	if err := s.db.WithContext(ctx).Where("trashed = ?", true).Find(&trashed).Error; err != nil {
		return &StoreError{Op: "list trash", Cause: err}
	}
	var errs []error
	purged := make([]string, 0, len(trashed))
	for _, f := range trashed {
		if err := os.Remove(s.blobPath(f.ID)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", f.ID, err))
			continue
		}
		purged = append(purged, f.ID)
	}
	if len(purged) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", purged).Delete(&fileModel{}).Error; err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &StoreError{Op: "purge trash", Cause: errors.Join(errs...)}
	}
	logger.Debugf("asset: purged %d trashed files", len(purged))
	return nil
}

func (s *DiskStore) Open(ctx context.Context, fileID string) (File, io.ReadCloser, error) {
	if _, err := uuid.Parse(fileID); err != nil {
		return File{}, nil, ErrNotFound
	}
	var m fileModel
	err := s.db.WithContext(ctx).Where("id = ? AND trashed = ?", fileID, false).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return File{}, nil, ErrNotFound
	}
	if err != nil {
		return File{}, nil, &StoreError{Op: "lookup file", Cause: err}
	}
	fh, err := os.Open(s.blobPath(m.ID))
	if errors.Is(err, os.ErrNotExist) {
		return File{}, nil, ErrNotFound
	}
	if err != nil {
		return File{}, nil, &StoreError{Op: "open blob", Cause: err}
	}
	return m.toFile(), fh, nil
}

// Files lists the live files of a folder, newest first.
func (s *DiskStore) Files(ctx context.Context, folder Folder) ([]File, error) {
	var rows []fileModel
	err := s.db.WithContext(ctx).
		Where("folder_id = ? AND trashed = ?", folder.ID, false).
		Order("created_at DESC").Find(&rows).Error
	if err != nil {
		return nil, &StoreError{Op: "list files", Folder: folder.Name, Cause: err}
	}
	out := make([]File, len(rows))
	for i, r := range rows {
		out[i] = r.toFile()
	}
	return out, nil
}

func (s *DiskStore) Close() error {
	if s == nil {
		return nil
	}
	return gormstore.Close(s.db)
}

func (s *DiskStore) blobPath(id string) string {
	return filepath.Join(s.root, id)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".blob-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
