// Package editor ties the timeline, the speaker registry and the document
// view into one editing session. Document edits are converted one at a time;
// every change republishes the time map for playback and waveform readers.
package editor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mgpai22/recut/internal/document"
	"github.com/mgpai22/recut/internal/logging"
	"github.com/mgpai22/recut/internal/speaker"
	"github.com/mgpai22/recut/internal/timeline"
	"github.com/mgpai22/recut/internal/timemap"
)

var ErrClosed = errors.New("session closed")

type Option func(*Session)

func WithLogger(logger *logging.Logger) Option {
	return func(s *Session) { s.logger = logging.OrNop(logger) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithIDFunc(newID func() string) Option {
	return func(s *Session) { s.newID = newID }
}

func WithDocumentOptions(opts document.Options) Option {
	return func(s *Session) { s.docOpts = opts }
}

type Session struct {
	logger  *logging.Logger
	now     func() time.Time
	newID   func() string
	docOpts document.Options

	mu       sync.Mutex
	timeline *timeline.Timeline
	speakers *speaker.Registry

	current atomic.Pointer[timemap.Map]

	subMu sync.Mutex
	subs  map[int]chan *timemap.Map
	subID int

	queue chan request
	done  chan struct{}
	once  sync.Once

	cacheMu  sync.Mutex
	cached   *document.Document
	cacheRev uint64
	cacheVer uint64
}

type request struct {
	doc   *document.Document
	reply chan document.Result
}

func New(clips []*timeline.Clip, speakers *speaker.Registry, opts ...Option) *Session {
	s := &Session{
		logger: logging.Nop(),
		now:    time.Now,
		newID:  timeline.NewID,
		subs:   make(map[int]chan *timemap.Map),
		queue:  make(chan request),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if speakers == nil {
		speakers = speaker.NewRegistry()
	}
	s.speakers = speakers
	s.timeline = timeline.New(clips,
		timeline.WithClock(s.now),
		timeline.WithIDFunc(s.newID),
	)
	for _, c := range clips {
		if !c.IsGap() {
			speakers.Register(c.Speaker)
		}
	}
	s.current.Store(timemap.New(s.timeline.ActiveClips()))
	return s
}

// Map returns the latest published time map. It never blocks on writers.
func (s *Session) Map() *timemap.Map {
	return s.current.Load()
}

func (s *Session) Clips() []*timeline.Clip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Clips()
}

func (s *Session) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Revision()
}

func (s *Session) Speakers() *speaker.Registry {
	return s.speakers
}

// Subscribe delivers each newly published map. Slow readers only see the
// latest one. Cancel stops delivery and closes the channel.
func (s *Session) Subscribe() (<-chan *timemap.Map, func()) {
	ch := make(chan *timemap.Map, 1)

	s.subMu.Lock()
	id := s.subID
	s.subID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}
}

// Document renders the current timeline, reusing the previous render while
// neither the timeline nor the speaker names have changed. The result is
// shared and must not be modified.
func (s *Session) Document() *document.Document {
	s.mu.Lock()
	clips := s.timeline.Clips()
	rev := s.timeline.Revision()
	s.mu.Unlock()
	snap := s.speakers.Snapshot()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cached != nil && s.cacheRev == rev && s.cacheVer == snap.Version() {
		return s.cached
	}
	s.cached = document.Render(clips, snap, s.docOpts)
	s.cacheRev = rev
	s.cacheVer = snap.Version()
	return s.cached
}

// Run processes submitted documents until ctx is done. Only one conversion
// is ever in flight.
func (s *Session) Run(ctx context.Context) error {
	defer s.close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-s.queue:
			req.reply <- s.apply(req.doc)
		}
	}
}

// Submit queues an edited document and waits for it to be applied.
func (s *Session) Submit(ctx context.Context, doc *document.Document) (document.Result, error) {
	req := request{doc: doc, reply: make(chan document.Result, 1)}
	select {
	case <-ctx.Done():
		return document.Result{}, ctx.Err()
	case <-s.done:
		return document.Result{}, ErrClosed
	case s.queue <- req:
	}
	select {
	case <-ctx.Done():
		return document.Result{}, ctx.Err()
	case res := <-req.reply:
		return res, nil
	}
}

// Apply converts a document synchronously, bypassing the queue. Meant for
// one-shot callers that do not run the session loop.
func (s *Session) Apply(doc *document.Document) document.Result {
	return s.apply(doc)
}

func (s *Session) apply(doc *document.Document) document.Result {
	s.mu.Lock()
	res := document.Reconcile(doc, s.timeline.Clips(), document.ReconcileOptions{
		Logger:   s.logger,
		Now:      s.now,
		NewID:    s.newID,
		Speakers: s.speakers.Snapshot(),
	})
	if res.HasChanged {
		s.timeline.Replace(res.Clips)
		for _, c := range res.Clips {
			if !c.IsGap() {
				s.speakers.Register(c.Speaker)
			}
		}
	}
	s.mu.Unlock()

	if res.HasChanged {
		s.logger.Debugw("document applied", "clips", len(res.Clips))
		s.publish()
	}
	return res
}

func (s *Session) Reorder(ids []string) error {
	return s.mutate(func(tl *timeline.Timeline) error { return tl.Reorder(ids) })
}

func (s *Session) Delete(id string) error {
	return s.mutate(func(tl *timeline.Timeline) error { return tl.Delete(id) })
}

func (s *Session) Restore(id string) error {
	return s.mutate(func(tl *timeline.Timeline) error { return tl.Restore(id) })
}

func (s *Session) Split(id string, wordIndex int) (left, right *timeline.Clip, err error) {
	err = s.mutate(func(tl *timeline.Timeline) error {
		left, right, err = tl.Split(id, wordIndex)
		return err
	})
	return left, right, err
}

func (s *Session) Merge(primaryID, secondaryID string) (merged *timeline.Clip, err error) {
	err = s.mutate(func(tl *timeline.Timeline) error {
		merged, err = tl.Merge(primaryID, secondaryID)
		return err
	})
	return merged, err
}

func (s *Session) RenameSpeaker(id, name string) error {
	return s.speakers.SetName(id, name)
}

func (s *Session) MergeSpeakers(from, into string) error {
	return s.speakers.Merge(from, into)
}

func (s *Session) mutate(fn func(*timeline.Timeline) error) error {
	s.mu.Lock()
	err := fn(s.timeline)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish()
	return nil
}

// publish recomputes the map from the current active clips and hands it to
// subscribers, replacing any map they have not read yet.
func (s *Session) publish() {
	s.mu.Lock()
	m := timemap.New(s.timeline.ActiveClips())
	s.current.Store(m)
	s.mu.Unlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- m
	}
}

func (s *Session) close() {
	s.once.Do(func() { close(s.done) })
}
