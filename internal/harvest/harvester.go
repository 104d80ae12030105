package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/profileharvest/internal/browser"
)

var (
	ErrInvalidQuota    = errors.New("quota must be a positive integer")
	ErrEmptySearchTerm = errors.New("search term must not be empty")

	// ErrDuplicateProfile is the drop reason for a link already collected.
	ErrDuplicateProfile = errors.New("profile already collected")
)

// DefaultPageSize is the number of results the site renders per page.
const DefaultPageSize = 10

// Validate checks harvest arguments. Call it before creating a browser.
func Validate(term string, quota int) error {
	var errs []error
	if strings.TrimSpace(term) == "" {
		errs = append(errs, ErrEmptySearchTerm)
	}
	if quota <= 0 {
		errs = append(errs, fmt.Errorf("%w, got %d", ErrInvalidQuota, quota))
	}
	return errors.Join(errs...)
}

// Stop is the reason a harvest ended.
type Stop int

const (
	// StopQuota means the quota was met.
	StopQuota Stop = iota
	// StopExhausted means there were no further pages.
	StopExhausted
	// StopFailed means the harvest was aborted by an error.
	StopFailed
)

func (s Stop) String() string {
	switch s {
	case StopQuota:
		return "quota reached"
	case StopExhausted:
		return "pages exhausted"
	default:
		return "failed"
	}
}

// Result holds the accepted records in page order then row order.
type Result struct {
	Records    []Record
	Pages      int
	Rejected   int
	Skipped    int
	Duplicates int
	Stop       Stop
}

// Observer is notified of harvest progress. Calls happen on the harvesting
// goroutine. RowDropped's reason is nil for a row with neither name nor link,
// ErrDuplicateProfile for a repeated link, and the read error otherwise.
type Observer interface {
	PageStarted(page int)
	RowAccepted(rec Record, accepted, quota int)
	RowDropped(page, row int, reason error)
	Finished(res *Result, err error)
}

type nopObserver struct{}

func (nopObserver) PageStarted(int)              {}
func (nopObserver) RowAccepted(Record, int, int) {}
func (nopObserver) RowDropped(int, int, error)   {}
func (nopObserver) Finished(*Result, error)      {}

// Options tunes a Harvester. Zero values select the defaults.
type Options struct {
	PageSize     int
	DedupeByLink bool
	BetweenPages time.Duration
	Pacer        *browser.Pacer
	Observer     Observer
	Logger       *log.Logger
}

// Harvester walks a ResultPage until the quota is met or the pages run out.
type Harvester struct {
	page     ResultPage
	pageSize int
	dedupe   bool
	between  time.Duration
	pacer    *browser.Pacer
	observer Observer
	logger   *log.Logger
}

// New returns a Harvester reading from page.
func New(page ResultPage, opts Options) *Harvester {
	h := &Harvester{
		page:     page,
		pageSize: opts.PageSize,
		dedupe:   opts.DedupeByLink,
		between:  opts.BetweenPages,
		pacer:    opts.Pacer,
		observer: opts.Observer,
		logger:   opts.Logger,
	}
	if h.pageSize <= 0 {
		h.pageSize = DefaultPageSize
	}
	if h.pacer == nil {
		h.pacer = browser.NewPacer()
	}
	if h.observer == nil {
		h.observer = nopObserver{}
	}
	if h.logger == nil {
		h.logger = log.Default()
	}
	h.logger = h.logger.With("component", "harvester")
	return h
}

// Harvest collects up to quota accepted records for term. Running out of
// pages is not an error. On failure the error is returned together with a
// StopFailed result holding whatever was collected before it.
func (h *Harvester) Harvest(ctx context.Context, term string, quota int) (*Result, error) {
	if err := Validate(term, quota); err != nil {
		return nil, err
	}

	res := &Result{Records: make([]Record, 0, quota)}
	err := h.run(ctx, term, quota, res)
	if err != nil {
		res.Stop = StopFailed
		h.logger.Error("harvest failed", "term", term, "collected", len(res.Records), "err", err)
	} else {
		h.logger.Info("harvest finished", "term", term, "collected", len(res.Records), "quota", quota,
			"pages", res.Pages, "stop", res.Stop)
	}
	h.observer.Finished(res, err)
	return res, err
}

func (h *Harvester) run(ctx context.Context, term string, quota int, res *Result) error {
	if err := h.page.Load(ctx, term); err != nil {
		return err
	}

	seen := make(map[string]struct{})
	for len(res.Records) < quota {
		res.Pages++
		h.observer.PageStarted(res.Pages)
		if err := h.page.Prepare(ctx); err != nil {
			return fmt.Errorf("preparing page %d: %w", res.Pages, err)
		}

		toExtract := min(h.pageSize, quota-len(res.Records))
		h.logger.Debug("extracting page", "page", res.Pages, "rows", toExtract)
		for row := 1; row <= toExtract; row++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := h.extract(ctx, row)
			if err != nil {
				res.Skipped++
				h.logger.Warn("could not extract row", "page", res.Pages, "row", row, "err", err)
				h.observer.RowDropped(res.Pages, row, err)
				continue
			}
			if !rec.Accepted() {
				res.Rejected++
				h.logger.Debug("row has neither name nor link", "page", res.Pages, "row", row)
				h.observer.RowDropped(res.Pages, row, nil)
				continue
			}
			if h.dedupe && rec.ProfileLink != Unavailable {
				if _, dup := seen[rec.ProfileLink]; dup {
					res.Duplicates++
					h.logger.Debug("duplicate profile skipped", "link", rec.ProfileLink)
					h.observer.RowDropped(res.Pages, row, ErrDuplicateProfile)
					continue
				}
				seen[rec.ProfileLink] = struct{}{}
			}
			res.Records = append(res.Records, rec)
			h.observer.RowAccepted(rec, len(res.Records), quota)
		}

		if len(res.Records) >= quota {
			res.Stop = StopQuota
			return nil
		}
		if !h.page.Advance(ctx) {
			if err := ctx.Err(); err != nil {
				return err
			}
			res.Stop = StopExhausted
			return nil
		}
		if err := h.pacer.Settle(ctx, h.between); err != nil {
			return err
		}
	}
	res.Stop = StopQuota
	return nil
}

// extract reads every field of row. A missing field is Unavailable; only a
// failure to read the row at all is an error.
func (h *Harvester) extract(ctx context.Context, row int) (Record, error) {
	rec := NewRecord()
	for _, kind := range Fields {
		v, err := h.page.Field(ctx, row, kind)
		if err != nil {
			return Record{}, err
		}
		rec.Set(kind, v)
	}
	return rec, nil
}
