package classify

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fafycat/fafycat/internal/common"
	"github.com/fafycat/fafycat/internal/model"
)

// Snapshot is one immutable trained-model generation: both sub-models, the
// blend weights, and the canonical category ordering, persisted and loaded
// together as a single atomic unit. A retrain produces a new snapshot; the
// old one is never mutated.
type Snapshot struct {
	TrainedAt       time.Time
	Version         string
	Tree            *GBTClassifier
	text            *TextClassifier
	Weights         model.BlendWeights
	ClassIDs        []int
	TrainingSamples int
}

// NewSnapshot assembles a snapshot from freshly fitted sub-models,
// validating that they can blend.
func NewSnapshot(tree *GBTClassifier, text *TextClassifier, weights model.BlendWeights, samples int) (*Snapshot, error) {
	aligner, err := NewAligner(tree.Classes(), text.Classes())
	if err != nil {
		return nil, err
	}
	if err := weights.Validate(); err != nil {
		return nil, common.NewConfigError("%v", err)
	}
	now := time.Now()
	return &Snapshot{
		TrainedAt:       now,
		Version:         now.UTC().Format("20060102-150405"),
		Tree:            tree,
		text:            text,
		Weights:         weights,
		ClassIDs:        aligner.ClassIDs,
		TrainingSamples: samples,
	}, nil
}

// Ensemble builds the serving ensemble from this snapshot.
func (s *Snapshot) Ensemble() (*Ensemble, error) {
	if s.Tree == nil || s.text == nil {
		return nil, common.ErrModelNotTrained
	}
	return NewEnsemble(s.Tree, s.text, s.Weights)
}

// snapshotPayload is the serialized form. The bayesian model carries its
// own wire format, so it rides along as raw bytes.
type snapshotPayload struct {
	TrainedAt       time.Time
	Version         string
	Tree            *GBTClassifier
	TextModel       []byte
	Weights         model.BlendWeights
	ClassIDs        []int
	TextClassIDs    []int
	TrainingSamples int
}

// Marshal serializes the snapshot into one opaque blob for the model store.
func (s *Snapshot) Marshal() ([]byte, error) {
	textBytes, err := s.text.marshal()
	if err != nil {
		return nil, err
	}
	payload := snapshotPayload{
		TrainedAt:       s.TrainedAt,
		Version:         s.Version,
		Tree:            s.Tree,
		TextModel:       textBytes,
		Weights:         s.Weights,
		ClassIDs:        s.ClassIDs,
		TextClassIDs:    s.text.Classes(),
		TrainingSamples: s.TrainingSamples,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalSnapshot restores a snapshot, verifying that the stored weights
// and category orderings are still mutually consistent. Mismatches block
// loading; they indicate sub-models persisted from different generations.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var payload snapshotPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	if err := payload.Weights.Validate(); err != nil {
		return nil, common.NewConfigError("stored blend weights invalid: %v", err)
	}
	if payload.Tree == nil || !payload.Tree.Trained {
		return nil, common.NewConfigError("stored snapshot has no trained tree model")
	}

	text, err := unmarshalTextClassifier(payload.TextModel, payload.TextClassIDs)
	if err != nil {
		return nil, err
	}

	aligner, err := NewAligner(payload.Tree.Classes(), text.Classes())
	if err != nil {
		return nil, err
	}
	if !equalInts(aligner.ClassIDs, payload.ClassIDs) {
		return nil, common.NewConfigError("stored category ordering does not match sub-models; snapshot is from mixed generations")
	}

	return &Snapshot{
		TrainedAt:       payload.TrainedAt,
		Version:         payload.Version,
		Tree:            payload.Tree,
		text:            text,
		Weights:         payload.Weights,
		ClassIDs:        payload.ClassIDs,
		TrainingSamples: payload.TrainingSamples,
	}, nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Handle holds the currently served ensemble behind an atomic pointer.
// Readers always see a complete snapshot; a retrain swaps the whole thing.
// It exists for long-lived serving processes that predict while a retrain
// runs; the one-shot CLI commands load a snapshot per invocation and do not
// need it.
type Handle struct {
	current atomic.Pointer[served]
}

type served struct {
	snapshot *Snapshot
	ensemble *Ensemble
}

// NewHandle creates an empty handle. Load returns ErrModelNotTrained until
// the first Swap.
func NewHandle() *Handle {
	return &Handle{}
}

// Swap atomically replaces the served snapshot.
func (h *Handle) Swap(snapshot *Snapshot) error {
	ensemble, err := snapshot.Ensemble()
	if err != nil {
		return err
	}
	h.current.Store(&served{snapshot: snapshot, ensemble: ensemble})
	return nil
}

// Ensemble returns the currently served ensemble.
func (h *Handle) Ensemble() (*Ensemble, error) {
	s := h.current.Load()
	if s == nil {
		return nil, common.ErrModelNotTrained
	}
	return s.ensemble, nil
}

// Snapshot returns the currently served snapshot.
func (h *Handle) Snapshot() (*Snapshot, error) {
	s := h.current.Load()
	if s == nil {
		return nil, common.ErrModelNotTrained
	}
	return s.snapshot, nil
}
