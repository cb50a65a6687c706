package detector

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/frcnn-detect/internal/detection"
	"github.com/ironsheep/frcnn-detect/internal/imaging"
	"github.com/ironsheep/frcnn-detect/internal/inference"
)

// Engine runs the model on one tensor. *inference.Session satisfies it.
type Engine interface {
	Run(t *imaging.Tensor) (*inference.Output, error)
}

// Timings records how long each stage of one request took.
type Timings struct {
	Preprocess time.Duration `json:"preprocess"`
	Tensor     time.Duration `json:"tensor"`
	Inference  time.Duration `json:"inference"`
	Decode     time.Duration `json:"decode"`
	Render     time.Duration `json:"render"`
}

// Total is the sum of all stages.
func (t Timings) Total() time.Duration {
	return t.Preprocess + t.Tensor + t.Inference + t.Decode + t.Render
}

// Result is the outcome of a successful Detect call.
type Result struct {
	// Image is the resized image with detections drawn on it, JPEG encoded.
	Image []byte

	Detections  []detection.Detection
	Processor   imaging.Kind
	Orientation imaging.Orientation

	// Width and Height are the resized dimensions; the padded ones are those
	// of the tensor handed to the engine.
	Width, Height             int
	PaddedWidth, PaddedHeight int

	Timings Timings
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Detector) { d.logger = l }
}

// WithLabels replaces the COCO label map.
func WithLabels(labels detection.LabelMap) Option {
	return func(d *Detector) { d.labels = labels }
}

// WithMetrics records every request in m.
func WithMetrics(m *Metrics) Option {
	return func(d *Detector) { d.metrics = m }
}

// Detector chains the pipeline stages for single requests.
//
// A Detector is safe for concurrent use as long as its Engine is. The stages
// of one request always run in order on the calling goroutine.
type Detector struct {
	engine  Engine
	procs   map[imaging.Kind]imaging.Processor
	labels  detection.LabelMap
	logger  *zap.SugaredLogger
	metrics *Metrics
}

// New builds a Detector around engine. procs must hold at least one Processor;
// requests name the one to use by Kind.
func New(engine Engine, procs map[imaging.Kind]imaging.Processor, opts ...Option) (*Detector, error) {
	if engine == nil {
		return nil, errors.New("detector needs an inference engine")
	}
	if len(procs) == 0 {
		return nil, errors.New("detector needs at least one image processor")
	}

	d := &Detector{
		engine: engine,
		procs:  make(map[imaging.Kind]imaging.Processor, len(procs)),
		labels: detection.COCO,
		logger: zap.NewNop().Sugar(),
	}
	for k, p := range procs {
		d.procs[k] = p
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Processor returns the back-end registered for kind.
func (d *Detector) Processor(kind imaging.Kind) (imaging.Processor, error) {
	p, ok := d.procs[kind]
	if !ok {
		return nil, errors.Errorf("image processor %q is not configured", kind)
	}
	return p, nil
}

// Labels is the label map used to name detections.
func (d *Detector) Labels() detection.LabelMap { return d.labels }

// Prepare runs only the loader and tensor builder stages.
func (d *Detector) Prepare(raw []byte, kind imaging.Kind) (*imaging.Frame, *imaging.Tensor, error) {
	p, err := d.Processor(kind)
	if err != nil {
		return nil, nil, err
	}
	f, err := p.Preprocess(raw)
	if err != nil {
		return nil, nil, err
	}
	return f, p.Tensor(f), nil
}

// Detect runs the whole pipeline on raw image bytes: load, build the tensor,
// run the engine, keep confident boxes and draw them. Errors from a stage are
// returned as that stage produced them.
func (d *Detector) Detect(raw []byte, kind imaging.Kind) (res *Result, err error) {
	if d.metrics != nil {
		d.metrics.InFlight.Inc()
		defer func() {
			d.metrics.InFlight.Dec()
			d.metrics.Requests.WithLabelValues(string(kind), outcome(err)).Inc()
			if err == nil {
				d.metrics.observe(res)
			}
		}()
	}

	p, err := d.Processor(kind)
	if err != nil {
		return nil, err
	}

	var t Timings
	start := time.Now()
	mark := func(dst *time.Duration) {
		now := time.Now()
		*dst = now.Sub(start)
		start = now
	}

	frame, err := p.Preprocess(raw)
	if err != nil {
		return nil, err
	}
	mark(&t.Preprocess)

	tensor := p.Tensor(frame)
	mark(&t.Tensor)

	out, err := d.engine.Run(tensor)
	if err != nil {
		return nil, err
	}
	mark(&t.Inference)

	dets, err := detection.Decode(out.Boxes, out.Labels, out.Scores, d.labels)
	if err != nil {
		return nil, err
	}
	mark(&t.Decode)

	img, err := p.Render(frame, dets)
	if err != nil {
		return nil, err
	}
	mark(&t.Render)

	d.logger.Debugw("detection finished",
		"processor", kind,
		"width", frame.Width(),
		"height", frame.Height(),
		"detections", len(dets),
		"elapsed", t.Total())

	return &Result{
		Image:        img,
		Detections:   dets,
		Processor:    kind,
		Orientation:  frame.Orientation(),
		Width:        frame.Width(),
		Height:       frame.Height(),
		PaddedWidth:  tensor.Width(),
		PaddedHeight: tensor.Height(),
		Timings:      t,
	}, nil
}
