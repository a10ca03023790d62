package scan

import (
	"context"
	"errors"
	"image"
	_ "image/jpeg" // snapshot formats written by capture tools
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var (
	// ErrPermissionDenied means the process may not read the camera.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrCameraUnavailable means no camera input exists.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrNoFrame means no new frame is ready yet; poll again.
	ErrNoFrame = errors.New("no new frame")
)

// FrameSource yields camera frames.  Next returns ErrNoFrame while no
// fresh frame is available.  Close releases the device.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// DirSource reads snapshots that an external capture tool (fswebcam,
// libcamera-still, ffmpeg -update 1) keeps writing into a directory.
// Each call returns the newest PNG or JPEG written since the previous
// frame.  The directory is only listed again after fsnotify reports a
// change; without a watcher every call lists it.
type DirSource struct {
	dir     string
	last    time.Time
	watcher *fsnotify.Watcher

	mu    sync.Mutex
	dirty bool
}

// OpenDirSource checks that dir is a readable directory and starts
// watching it.
func OpenDirSource(dir string) (*DirSource, error) {
	if _, err := os.ReadDir(dir); err != nil {
		return nil, classify(err)
	}
	s := &DirSource{dir: dir, dirty: true}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return s, nil
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return s, nil
	}
	s.watcher = w
	go s.watch()
	return s, nil
}

// watch marks the source dirty on every event until the watcher closes.
// Watcher errors also mark it dirty so the next listing surfaces them.
func (s *DirSource) watch() {
	for {
		select {
		case _, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.markDirty()
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.markDirty()
		}
	}
}

func (s *DirSource) markDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// takeDirty reports whether the directory may hold a new frame and
// clears the flag.
func (s *DirSource) takeDirty() bool {
	if s.watcher == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dirty
	s.dirty = false
	return d
}

func classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return errors.Join(ErrPermissionDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return errors.Join(ErrCameraUnavailable, err)
	default:
		return err
	}
}

func isSnapshot(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func (s *DirSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.takeDirty() {
		return nil, ErrNoFrame
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, classify(err)
	}
	var (
		newest   string
		newestAt time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !isSnapshot(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(s.last) && info.ModTime().After(newestAt) {
			newest, newestAt = e.Name(), info.ModTime()
		}
	}
	if newest == "" {
		return nil, ErrNoFrame
	}
	f, err := os.Open(filepath.Join(s.dir, newest))
	if err != nil {
		return nil, classify(err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		// Partially written file; retry on the next poll.
		s.markDirty()
		return nil, ErrNoFrame
	}
	s.last = newestAt
	return img, nil
}

// Close stops the watcher.  The capture tool owns the device itself.
func (s *DirSource) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}
