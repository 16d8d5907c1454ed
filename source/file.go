package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"wsbr-console/logger"
	"wsbr-console/models"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Files reads daemon property dumps from disk, one JSON object per service.
// Writers are expected to replace the file atomically (write + rename).
type Files struct {
	paths map[string]string
}

func NewFiles(paths map[string]string) *Files {
	cp := make(map[string]string, len(paths))
	for k, v := range paths {
		cp[k] = v
	}
	return &Files{paths: cp}
}

// Status treats a configured service as installed, and as active while its
// dump file exists.
func (f *Files) Status(_ context.Context, service string) (models.ServiceStatus, error) {
	path, ok := f.paths[service]
	if !ok {
		return models.NewServiceStatus(service, false, models.ActiveUnknown), nil
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return models.NewServiceStatus(service, true, models.ActiveActive), nil
	case errors.Is(err, fs.ErrNotExist):
		return models.NewServiceStatus(service, true, models.ActiveInactive), nil
	default:
		logger.Logger.Warn("Failed to stat property dump", zap.String("path", path), zap.Error(err))
		return models.NewServiceStatus(service, true, models.ActiveUnknown), nil
	}
}

func (f *Files) Connect(service string) (RoutingSource, error) {
	path, ok := f.paths[service]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
	return &FileSource{path: path}, nil
}

// FileSource is a RoutingSource backed by a single property dump.
type FileSource struct {
	path string
}

func (s *FileSource) Properties(ctx context.Context) (models.Properties, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		return nil, ErrNotReady
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceInvalid, err)
	}

	var props models.Properties
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceInvalid, err)
	}
	if !props.Ready() {
		return nil, ErrNotReady
	}
	return props, nil
}

// Subscribe watches the dump's directory, so replacing the file by rename is
// seen, and reports every change as a routing graph change.
func (s *FileSource) Subscribe(ctx context.Context) (<-chan string, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return nil, err
	}

	ch := make(chan string, 1)
	name := filepath.Clean(s.path)
	go func() {
		defer close(ch)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != name {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					notify(ch, models.PropRoutingGraph)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Logger.Warn("Property dump watcher error", zap.String("path", s.path), zap.Error(err))
			}
		}
	}()
	return ch, nil
}

func (s *FileSource) Close() error {
	return nil
}
