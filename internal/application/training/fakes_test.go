package training

import (
	"context"
	"encoding"
	stderrors "errors"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/DrugEx/internal/domain/policy"
	"github.com/turtacn/DrugEx/internal/domain/run"
	"github.com/turtacn/DrugEx/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DrugEx/internal/infrastructure/storage/minio"
)

// scriptedStrategy returns one scripted result per call.
type scriptedStrategy struct {
	results []*policy.StepResult
	errAt   int // 1-based call that fails, 0 for never
	err     error
	onStep  func(call int)
	calls   int
}

func (s *scriptedStrategy) Name() string { return "pg" }

func (s *scriptedStrategy) Step(ctx context.Context, _ policy.Environment, _, _ policy.Generator) (*policy.StepResult, error) {
	s.calls++
	if s.onStep != nil {
		s.onStep(s.calls)
	}
	if s.calls == s.errAt {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.results[(s.calls-1)%len(s.results)], nil
}

// result builds a step result where every SMILES is valid unless listed in
// invalid.
func result(smiles []string, scores []float64, invalid ...int) *policy.StepResult {
	valid := make([]bool, len(smiles))
	for i := range valid {
		valid[i] = true
	}
	for _, i := range invalid {
		valid[i] = false
	}
	n := 0
	for _, v := range valid {
		if v {
			n++
		}
	}
	return &policy.StepResult{
		Strategy:  "pg",
		SMILES:    smiles,
		Valid:     valid,
		ValidRate: float64(n) / float64(len(smiles)),
		Scores:    scores,
		Rewards:   scores,
		Loss:      0.5,
	}
}

type stubEnv struct{ threads int }

func (e *stubEnv) Score(_ context.Context, smiles []string) ([]float64, error) {
	return make([]float64, len(smiles)), nil
}

func (e *stubEnv) SetParallelism(n int) { e.threads = n }

// stubAgent is a Generator that can be checkpointed.
type stubAgent struct {
	data   []byte
	encErr error
}

func (a *stubAgent) MaxLen() int             { return 4 }
func (a *stubAgent) Begin(int) policy.Cursor { return nil }
func (a *stubAgent) ZeroGrad()               {}
func (a *stubAgent) Step() error             { return nil }

func (a *stubAgent) Sample(context.Context, policy.SampleRequest) (policy.Sequences, error) {
	return nil, nil
}

func (a *stubAgent) Likelihood(context.Context, policy.Sequences) (policy.Likelihood, error) {
	return nil, nil
}

func (a *stubAgent) PolicyUpdate(context.Context, policy.Sequences, []float64) (float64, error) {
	return 0, nil
}

func (a *stubAgent) PGLoss(context.Context, policy.Likelihood, policy.Sequences, *mat.Dense) (policy.Loss, error) {
	return nil, nil
}

func (a *stubAgent) MarshalBinary() ([]byte, error) {
	if a.encErr != nil {
		return nil, a.encErr
	}
	if a.data == nil {
		return []byte(`{"agent":true}`), nil
	}
	return a.data, nil
}

// plainAgent cannot be encoded.
type plainAgent struct{ policy.Generator }

type fakeLock struct {
	lockErr   error
	unlockErr error
	locked    int
	unlocked  int
}

func (l *fakeLock) Lock(context.Context) error   { l.locked++; return l.lockErr }
func (l *fakeLock) Unlock(context.Context) error { l.unlocked++; return l.unlockErr }

type savedCheckpoint struct {
	run   string
	epoch int
}

type fakeStore struct {
	saves []savedCheckpoint
	err   error
}

func (s *fakeStore) Kind() string { return "fake" }

func (s *fakeStore) Save(_ context.Context, runName string, epoch int, _ encoding.BinaryMarshaler) (string, error) {
	s.saves = append(s.saves, savedCheckpoint{run: runName, epoch: epoch})
	if s.err != nil {
		return "", s.err
	}
	return "mem://" + runName, nil
}

// recordingMonitor keeps every hook call.
type recordingMonitor struct {
	mu      sync.Mutex
	starts  []run.Run
	reports []*EpochReport
	ends    []run.Run
	err     error
}

func (m *recordingMonitor) Name() string { return "recording" }

func (m *recordingMonitor) OnRunStart(_ context.Context, r *run.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts = append(m.starts, *r)
	return m.err
}

func (m *recordingMonitor) OnEpoch(_ context.Context, rep *EpochReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, rep)
	return m.err
}

func (m *recordingMonitor) OnRunEnd(_ context.Context, r *run.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ends = append(m.ends, *r)
	return m.err
}

// memRunRepo is an in-memory run.RunRepository.
type memRunRepo struct {
	runs      map[string]run.Run
	epochs    map[string][]run.Epoch
	creates   int
	createErr error
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{runs: make(map[string]run.Run), epochs: make(map[string][]run.Epoch)}
}

func (r *memRunRepo) CreateRun(_ context.Context, rn *run.Run) error {
	r.creates++
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.runs[rn.ID]; !ok {
		r.runs[rn.ID] = *rn
	}
	return nil
}

func (r *memRunRepo) FinishRun(_ context.Context, rn *run.Run) error {
	if _, ok := r.runs[rn.ID]; !ok {
		return stderrors.New("run not found")
	}
	r.runs[rn.ID] = *rn
	return nil
}

func (r *memRunRepo) GetRun(_ context.Context, id string) (*run.Run, error) {
	rn, ok := r.runs[id]
	if !ok {
		return nil, stderrors.New("run not found")
	}
	return &rn, nil
}

func (r *memRunRepo) RecordEpoch(_ context.Context, e *run.Epoch) error {
	list := r.epochs[e.RunID]
	for i := range list {
		if list[i].Epoch == e.Epoch {
			list[i] = *e
			return nil
		}
	}
	r.epochs[e.RunID] = append(list, *e)
	return nil
}

func (r *memRunRepo) ListEpochs(_ context.Context, runID string, _, _ int) ([]*run.Epoch, error) {
	var out []*run.Epoch
	for i := range r.epochs[runID] {
		out = append(out, &r.epochs[runID][i])
	}
	return out, nil
}

type memSampleRepo struct {
	saved []run.Sample
	err   error
}

func (r *memSampleRepo) SaveSamples(_ context.Context, samples []run.Sample) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.saved = append(r.saved, samples...)
	return int64(len(samples)), nil
}

func (r *memSampleRepo) TopSamples(_ context.Context, _ string, limit int) ([]run.Sample, error) {
	if limit > len(r.saved) {
		limit = len(r.saved)
	}
	return r.saved[:limit], nil
}

type published struct {
	topic string
	env   *kafka.EventEnvelope
}

type fakePublisher struct {
	events []published
	err    error
}

func (p *fakePublisher) PublishEvent(_ context.Context, topic string, env *kafka.EventEnvelope) error {
	p.events = append(p.events, published{topic: topic, env: env})
	return p.err
}

type fakeEventRecorder struct {
	topics []string
	errs   []error
}

func (r *fakeEventRecorder) RecordEvent(topic string, err error) {
	r.topics = append(r.topics, topic)
	r.errs = append(r.errs, err)
}

// memObjectStore is an in-memory minio.ObjectStore.
type memObjectStore struct {
	objects map[string][]byte
	meta    map[string]map[string]string
	putErr  error
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string][]byte), meta: make(map[string]map[string]string)}
}

func (s *memObjectStore) Put(_ context.Context, key string, data []byte, _ string, meta map[string]string) (*minio.ObjectInfo, error) {
	if s.putErr != nil {
		return nil, s.putErr
	}
	s.objects[key] = append([]byte(nil), data...)
	s.meta[key] = meta
	return &minio.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (s *memObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, minio.ErrObjectNotFound
	}
	return data, nil
}

func (s *memObjectStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memObjectStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func (s *memObjectStore) List(_ context.Context, prefix string) ([]minio.ObjectInfo, error) {
	var out []minio.ObjectInfo
	for k, v := range s.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, minio.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

//Personal.AI order the ending
