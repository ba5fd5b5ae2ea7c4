package training

import (
	"context"
	"encoding"
	"os"
	"path/filepath"
	"strconv"

	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/internal/infrastructure/storage/minio"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// CheckpointStore persists the agent whenever a run finds a better score.
// Save returns where the checkpoint went.
type CheckpointStore interface {
	Kind() string
	Save(ctx context.Context, runName string, epoch int, model encoding.BinaryMarshaler) (string, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// FileCheckpointStore
// ─────────────────────────────────────────────────────────────────────────────

// FileCheckpointStore writes <dir>/<run name>.json, replacing the previous
// best atomically.
type FileCheckpointStore struct {
	dir    string
	logger logging.Logger
}

func NewFileCheckpointStore(dir string, logger logging.Logger) *FileCheckpointStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &FileCheckpointStore{dir: dir, logger: logger}
}

func (s *FileCheckpointStore) Kind() string { return "file" }

// Path returns the file a run's checkpoint is written to.
func (s *FileCheckpointStore) Path(runName string) string {
	return filepath.Join(s.dir, runName+".json")
}

func (s *FileCheckpointStore) Save(_ context.Context, runName string, epoch int, model encoding.BinaryMarshaler) (string, error) {
	data, err := model.MarshalBinary()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCheckpointSave, "failed to encode checkpoint")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCheckpointSave, "failed to create checkpoint directory").WithDetail(s.dir)
	}

	path := s.Path(runName)
	tmp, err := os.CreateTemp(s.dir, "."+runName+".*.tmp")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCheckpointSave, "failed to create checkpoint file").WithDetail(path)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, errors.ErrCodeCheckpointSave, "failed to write checkpoint").WithDetail(path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, errors.ErrCodeCheckpointSave, "failed to write checkpoint").WithDetail(path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, errors.ErrCodeCheckpointSave, "failed to replace checkpoint").WithDetail(path)
	}

	s.logger.Debug("Checkpoint written", logging.String("path", path), logging.Int("epoch", epoch))
	return path, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ObjectCheckpointStore
// ─────────────────────────────────────────────────────────────────────────────

// ObjectCheckpointStore puts checkpoints under checkpoints/<run name>/agent.json
// in the model bucket.
type ObjectCheckpointStore struct {
	store  minio.ObjectStore
	logger logging.Logger
}

func NewObjectCheckpointStore(store minio.ObjectStore, logger logging.Logger) *ObjectCheckpointStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ObjectCheckpointStore{store: store, logger: logger}
}

func (s *ObjectCheckpointStore) Kind() string { return "minio" }

// CheckpointKey is the object key of a run's best agent.
func CheckpointKey(runName string) string {
	return minio.ObjectKey("checkpoints", runName, "agent.json")
}

func (s *ObjectCheckpointStore) Save(ctx context.Context, runName string, epoch int, model encoding.BinaryMarshaler) (string, error) {
	data, err := model.MarshalBinary()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCheckpointSave, "failed to encode checkpoint")
	}
	key := CheckpointKey(runName)
	info, err := s.store.Put(ctx, key, data, "application/json", map[string]string{
		"run":   runName,
		"epoch": strconv.Itoa(epoch),
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCheckpointSave, "failed to upload checkpoint").WithDetail(key)
	}
	s.logger.Debug("Checkpoint uploaded", logging.String("key", info.Key), logging.Int64("size", info.Size))
	return info.Key, nil
}

//Personal.AI order the ending
