package inference

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ironsheep/frcnn-detect/internal/imaging"
)

// Error is a failure reported by the inference engine. Message keeps the
// engine's own text.
type Error struct {
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("inference %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func engineError(op string, err error) *Error {
	return &Error{Op: op, Message: err.Error(), Cause: err}
}

// Output holds the three model outputs of one run. Boxes is the flattened
// (n, 4) box array; Labels and Scores have one entry per box.
type Output struct {
	Boxes  []float32
	Labels []int64
	Scores []float32
}

// LoadModel reads the model file. The bytes are shared by every session built
// from them.
func LoadModel(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("empty model path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read model")
	}
	if len(data) == 0 {
		return nil, errors.Errorf("model file %s is empty", path)
	}
	return data, nil
}

// Session wraps an ONNX Runtime session for a Faster R-CNN model.
//
// ONNX Runtime allows concurrent Run calls on one session, so a Session may be
// shared by any number of goroutines. Close must not race with Run.
type Session struct {
	session *ort.DynamicAdvancedSession
	input   string
	outputs [3]string
	logger  *zap.SugaredLogger
}

// NewSession initializes the runtime if needed and loads model. The model's
// first input receives the image tensor; its first three outputs are read as
// boxes, labels and scores.
func NewSession(model []byte, cfg Config) (*Session, error) {
	if len(model) == 0 {
		return nil, errors.New("empty model")
	}
	logger := cfg.logger()

	if err := acquireEnvironment(cfg.SharedLibraryPath); err != nil {
		return nil, err
	}

	s, err := newSession(model, cfg)
	if err != nil {
		return nil, multierr.Append(err, releaseEnvironment())
	}

	logger.Infow("inference session ready",
		"mode", cfg.Mode,
		"input", s.input,
		"outputs", s.outputs[:])
	s.logger = logger
	return s, nil
}

func newSession(model []byte, cfg Config) (*Session, error) {
	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(model)
	if err != nil {
		return nil, engineError("inspect model", err)
	}
	if len(inputs) < 1 || len(outputs) < 3 {
		return nil, errors.Errorf("model has %d inputs and %d outputs, want 1 and 3", len(inputs), len(outputs))
	}

	opts, err := cfg.sessionOptions()
	if err != nil {
		return nil, err
	}
	defer func() { _ = opts.Destroy() }()

	s := &Session{input: inputs[0].Name}
	for i := range s.outputs {
		s.outputs[i] = outputs[i].Name
	}

	s.session, err = ort.NewDynamicAdvancedSessionWithONNXData(model, []string{s.input}, s.outputs[:], opts)
	if err != nil {
		return nil, engineError("create session", err)
	}
	return s, nil
}

// Run executes the model on one tensor. It blocks until the engine returns.
func (s *Session) Run(t *imaging.Tensor) (*Output, error) {
	input, err := ort.NewTensor(ort.NewShape(t.Dims()...), t.Data)
	if err != nil {
		return nil, engineError("create input", err)
	}
	defer func() { _ = input.Destroy() }()

	outs := []ort.Value{nil, nil, nil}
	defer func() {
		for _, v := range outs {
			if v != nil {
				_ = v.Destroy()
			}
		}
	}()

	if err := s.session.Run([]ort.Value{input}, outs); err != nil {
		s.logger.Debugw("inference run failed", "shape", t.Shape, "error", err)
		return nil, engineError("run", err)
	}

	boxes, ok := outs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("output %q has type %T, want float32 tensor", s.outputs[0], outs[0])
	}
	labels, ok := outs[1].(*ort.Tensor[int64])
	if !ok {
		return nil, errors.Errorf("output %q has type %T, want int64 tensor", s.outputs[1], outs[1])
	}
	scores, ok := outs[2].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("output %q has type %T, want float32 tensor", s.outputs[2], outs[2])
	}

	// The tensors are destroyed on return, so copy out of runtime memory.
	return &Output{
		Boxes:  append([]float32(nil), boxes.GetData()...),
		Labels: append([]int64(nil), labels.GetData()...),
		Scores: append([]float32(nil), scores.GetData()...),
	}, nil
}

// Close releases the session and, for the last open session, the runtime.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return multierr.Append(err, releaseEnvironment())
}
