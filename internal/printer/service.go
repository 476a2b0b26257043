package printer

import (
	"context"
	"fmt"
	"image"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thereceipt/receipt-relay/internal/job"
	"github.com/thereceipt/receipt-relay/internal/renderer"
)

// Text and code rendering modes
const (
	ModeNative = "native"
	ModeRaster = "raster"
	ModeAuto   = "auto"
)

// Fetcher returns the raw bytes behind a file identifier
type Fetcher interface {
	Fetch(ctx context.Context, fileID string) ([]byte, error)
}

// ServiceOptions tunes how jobs are rendered
type ServiceOptions struct {
	TextMode string // native, raster or auto (raster for non-ASCII text)
	CodeMode string // native or raster
	FontPath string
	FontSize float64
}

// Service turns jobs into printed receipts
type Service struct {
	encoder Encoder
	fetcher Fetcher
	pre     *renderer.Preprocessor
	opts    ServiceOptions
	logger  *zap.Logger
}

// NewService creates a print service. fetcher may be nil when no image jobs
// are expected.
func NewService(encoder Encoder, fetcher Fetcher, pre *renderer.Preprocessor, opts ServiceOptions, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TextMode == "" {
		opts.TextMode = ModeAuto
	}
	if opts.CodeMode == "" {
		opts.CodeMode = ModeNative
	}
	return &Service{
		encoder: encoder,
		fetcher: fetcher,
		pre:     pre,
		opts:    opts,
		logger:  logger.With(zap.String("component", "service")),
	}
}

type stepKind int

const (
	stepLine stepKind = iota
	stepBitmap
	stepBarcode
	stepQR
)

type step struct {
	kind      stepKind
	text      string
	bitmap    []byte
	symbology job.Symbology
}

// Prepared is a job whose content has been fetched, rendered and validated.
// Nothing has been sent to the printer yet.
type Prepared struct {
	Job   job.Job
	steps []step
}

// Prepare does all the work for j that does not touch the printer
func (s *Service) Prepare(ctx context.Context, j job.Job) (*Prepared, error) {
	if err := job.Validate(j); err != nil {
		return nil, err
	}

	p := &Prepared{Job: j}
	switch v := j.(type) {
	case job.Text:
		if err := s.prepareText(p, v.Content); err != nil {
			return nil, err
		}

	case job.Image:
		if err := s.prepareImage(ctx, p, v.Source); err != nil {
			return nil, err
		}
		if v.Caption != "" {
			if err := s.prepareText(p, v.Caption); err != nil {
				return nil, err
			}
		}

	case job.Sticker:
		if err := s.prepareImage(ctx, p, v.Source); err != nil {
			return nil, err
		}

	case job.QRCode:
		if s.opts.CodeMode == ModeRaster {
			img, err := renderer.RenderQR(v.Payload, s.pre.Options().MaxWidth)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", job.ErrInvalidPayload, err)
			}
			if err := s.prepareRaster(p, img, "qrcode"); err != nil {
				return nil, err
			}
		} else {
			p.steps = append(p.steps, step{kind: stepQR, text: v.Payload})
		}

	case job.Barcode:
		if s.opts.CodeMode == ModeRaster {
			bc, err := job.EncodeBarcode(v.Symbology, v.Payload)
			if err != nil {
				return nil, err
			}
			img, err := renderer.RenderBarcode(bc, s.pre.Options().MaxWidth, 80)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", job.ErrInvalidPayload, err)
			}
			if err := s.prepareRaster(p, img, "barcode"); err != nil {
				return nil, err
			}
		} else {
			p.steps = append(p.steps, step{kind: stepBarcode, symbology: v.Symbology, text: v.Payload})
		}

	default:
		return nil, fmt.Errorf("unsupported job type %T", j)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) prepareText(p *Prepared, text string) error {
	raster := s.opts.TextMode == ModeRaster ||
		(s.opts.TextMode == ModeAuto && !renderer.IsPlainASCII(text))
	if !raster {
		p.steps = append(p.steps, step{kind: stepLine, text: text})
		return nil
	}

	img := renderer.RenderText(text, s.pre.Options().MaxWidth, renderer.TextStyle{
		FontPath: s.opts.FontPath,
		FontSize: s.opts.FontSize,
	})
	return s.prepareRaster(p, img, "text")
}

func (s *Service) prepareRaster(p *Prepared, img image.Image, tag string) error {
	bm, err := s.pre.ProcessImage(img, tag)
	if err != nil {
		return err
	}
	p.steps = append(p.steps, step{kind: stepBitmap, bitmap: bm.PNG})
	return nil
}

func (s *Service) prepareImage(ctx context.Context, p *Prepared, source string) error {
	if s.fetcher == nil {
		return fmt.Errorf("no content source configured for %s", job.ShortID(source))
	}

	data, err := s.fetcher.Fetch(ctx, source)
	if err != nil {
		return err
	}

	type result struct {
		bm  *renderer.Bitmap
		err error
	}
	done := make(chan result, 1)
	go func() {
		bm, err := s.pre.Process(data, job.ShortID(source))
		done <- result{bm, err}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-done:
		if res.err != nil {
			return res.err
		}
		p.steps = append(p.steps, step{kind: stepBitmap, bitmap: res.bm.PNG})
		return nil
	}
}

// Commit opens a session, stages the prepared content and finishes the
// receipt. An error part way through leaves whatever was already sent.
func (s *Service) Commit(ctx context.Context, p *Prepared) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sess, err := s.encoder.Open()
	if err != nil {
		return err
	}

	for _, st := range p.steps {
		var err error
		switch st.kind {
		case stepLine:
			err = sess.WriteLine(st.text)
		case stepBitmap:
			err = sess.WriteBitmap(st.bitmap)
		case stepBarcode:
			err = sess.WriteBarcode(st.symbology, st.text)
		case stepQR:
			err = sess.WriteQR(st.text)
		}
		if err != nil {
			return err
		}
	}

	return sess.Commit()
}

// Print prepares and commits j, returning its record in a terminal state.
// The returned error is the one recorded on a Failed record.
func (s *Service) Print(ctx context.Context, j job.Job) (*job.Record, error) {
	rec := job.NewRecord(uuid.NewString(), j)
	log := s.logger.With(zap.String("job_id", rec.ID), zap.String("kind", rec.Kind))

	fail := func(err error) (*job.Record, error) {
		rec.Fail(err, ErrorKind(err))
		log.Error("print failed", zap.String("state", string(rec.State)), zap.Error(err))
		return rec, err
	}

	prepared, err := s.Prepare(ctx, j)
	if err != nil {
		return fail(err)
	}
	if err := rec.Advance(job.Prepared); err != nil {
		return fail(err)
	}

	if err := s.Commit(ctx, prepared); err != nil {
		return fail(err)
	}
	if err := rec.Advance(job.Committed); err != nil {
		return fail(err)
	}

	log.Info("print committed", zap.String("summary", rec.Summary))
	return rec, nil
}
