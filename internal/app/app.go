// Package app wires the capture pipeline together and owns its lifecycle:
// sampler, frame queue, recognition worker, dedup tracker, committer,
// store, and the HTTP surface.
package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

	"marketwatch/internal/capture"
	"marketwatch/internal/config"
	"marketwatch/internal/dedup"
	"marketwatch/internal/events"
	"marketwatch/internal/history"
	"marketwatch/internal/httpapi"
	"marketwatch/internal/layout"
	"marketwatch/internal/metrics"
	"marketwatch/internal/notify"
	"marketwatch/internal/parse"
	"marketwatch/internal/ranking"
	"marketwatch/internal/recog"
)

var (
	ErrAlreadyRunning = errors.New("capture already running")
	ErrNotRunning     = errors.New("capture not running")
)

// RecognizerFactory builds a fresh recognizer per capture session.
type RecognizerFactory func() (recog.Recognizer, error)

// App wires the pipeline components together.
type App struct {
	cfg     config.Config
	grabber capture.Grabber
	newRec  RecognizerFactory

	store  *history.Store
	writer *history.Writer
	board  *ranking.Board
	bus    *events.Bus
	broker *httpapi.Broker
	mux    *http.ServeMux

	mu      sync.Mutex
	catalog *layout.Catalog
	session *session
}

// session is one start/stop span of the pipeline.
type session struct {
	id      int64
	queue   *capture.FrameQueue
	sampler *capture.Sampler
	worker  *recog.Worker
	rec     recog.Recognizer
	tracker *dedup.Tracker
	done    chan struct{}
}

// New builds the production app: screenshots from the capture directory,
// Tesseract for recognition.
func New(cfg config.Config) (*App, error) {
	return NewWith(cfg, capture.NewDirectoryGrabber(cfg.CaptureDir), func() (recog.Recognizer, error) {
		return recog.NewTesseract(cfg.TessLanguage)
	})
}

// NewWith injects the grabber and recognizer, for tests and alternative
// capture sources.
func NewWith(cfg config.Config, grabber capture.Grabber, newRec RecognizerFactory) (*App, error) {
	catalog, err := layout.Load(cfg.LayoutsPath)
	if err != nil {
		return nil, err
	}
	if _, err := catalog.Layout(cfg.LayoutID); err != nil {
		return nil, err
	}
	st, err := history.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	bus := events.NewBus()
	a := &App{
		cfg:     cfg,
		grabber: grabber,
		newRec:  newRec,
		store:   st,
		writer:  history.NewWriter(st, bus),
		board:   ranking.NewBoard(),
		bus:     bus,
		broker:  httpapi.NewBroker(bus),
		catalog: catalog,
	}
	a.mux = http.NewServeMux()
	router := httpapi.NewRouter(cfg, st, a.board, a, a.broker)
	router.Register(a.mux)
	return a, nil
}

// StartCapture spins up a capture session: sampler, worker, committer.
func (a *App) StartCapture() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		return ErrAlreadyRunning
	}
	active, err := a.catalog.Layout(a.cfg.LayoutID)
	if err != nil {
		return err
	}
	rec, err := a.newRec()
	if err != nil {
		return err
	}
	parser := parseFor(a.catalog, a.cfg)
	tracker := dedup.NewTracker(dedup.Config{
		Stability:   a.cfg.StabilityThreshold,
		IdleTimeout: a.cfg.IdleTimeout(),
	})
	queue := capture.NewFrameQueue(a.cfg.FrameQueueDepth)
	worker := recog.NewWorker(queue, rec, parser, tracker, active.Zones, a.bus)
	sampler := capture.NewSampler(a.grabber, active, a.cfg.CaptureInterval(), a.cfg.MaxBackoff(), queue, a.bus)

	id, err := a.store.StartSession(context.Background(), config.Now())
	if err != nil {
		rec.Close()
		return err
	}
	s := &session{
		id:      id,
		queue:   queue,
		sampler: sampler,
		worker:  worker,
		rec:     rec,
		tracker: tracker,
		done:    make(chan struct{}),
	}
	a.session = s

	worker.Start()
	sampler.Start(context.Background())
	go a.commitLoop(s)

	log.Printf("capture session %d started layout=%s interval=%s", id, a.cfg.LayoutID, a.cfg.CaptureInterval())
	a.bus.Publish(events.Event{
		Kind:    events.KindSessionStarted,
		Payload: map[string]any{"session_id": id, "layout": a.cfg.LayoutID},
	})
	return nil
}

// commitLoop is the single committer goroutine: ranking first, history
// second. A degraded history write never blocks the board.
func (a *App) commitLoop(s *session) {
	defer close(s.done)
	committed := 0
	for obs := range s.worker.Observations() {
		a.board.Apply(obs)
		metrics.IncCommits()
		committed++
		a.bus.Publish(events.Event{
			Kind:   events.KindObservationCommitted,
			Region: obs.Region,
			At:     obs.CommittedAt,
			Payload: map[string]any{
				"good_name":    obs.Good,
				"local_price":  obs.LocalPrice,
				"friend_price": obs.FriendPrice,
				"profit":       obs.Profit(),
			},
		})
		// Errors are already surfaced as degradation events.
		_ = a.writer.Append(context.Background(), obs)
		if a.cfg.AlertWebhookURL != "" && obs.Profit() >= a.cfg.AlertMinProfit {
			go func(o dedup.Observation) {
				if err := notify.SendProfitAlert(a.cfg.AlertWebhookURL, o); err != nil {
					log.Printf("profit alert: %v", err)
				}
			}(obs)
		}
	}
	if err := a.store.EndSession(context.Background(), s.id, config.Now(), committed); err != nil {
		log.Printf("end session %d: %v", s.id, err)
	}
	log.Printf("capture session %d ended observations=%d", s.id, committed)
	a.bus.Publish(events.Event{
		Kind:    events.KindSessionEnded,
		Payload: map[string]any{"session_id": s.id, "observations": committed},
	})
}

// StopCapture drains the pipeline in order: sampler, queue, worker,
// committer. Partial dedup runs are discarded, never force-committed.
func (a *App) StopCapture() error {
	a.mu.Lock()
	s := a.session
	a.session = nil
	a.mu.Unlock()
	if s == nil {
		return ErrNotRunning
	}
	s.sampler.Stop()
	s.queue.Close()
	s.worker.Wait()
	s.tracker.DiscardPartial()
	<-s.done
	if err := s.rec.Close(); err != nil {
		log.Printf("close recognizer: %v", err)
	}
	return nil
}

// Running reports whether a capture session is active.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil
}

// Run serves HTTP and supporting loops until ctx is done, then stops any
// active session.
func (a *App) Run(ctx context.Context) error {
	go a.broker.Run(ctx)

	err := layout.Watch(ctx, a.cfg.LayoutsPath, func(path string) {
		a.reloadCatalog(path)
	})
	if err != nil {
		log.Printf("layout watch disabled: %v", err)
	}

	if a.cfg.AutoStart {
		if err := a.StartCapture(); err != nil {
			return err
		}
	}

	srv := &http.Server{Addr: ":" + a.cfg.HTTPPort, Handler: a.mux}
	go func() {
		<-ctx.Done()
		if err := a.StopCapture(); err != nil && !errors.Is(err, ErrNotRunning) {
			log.Printf("stop capture: %v", err)
		}
		_ = srv.Shutdown(context.Background())
	}()
	log.Printf("http listening on %s", a.cfg.HTTPPort)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// reloadCatalog swaps the catalog for future sessions. The running session
// keeps its rectangles; the operator restarts capture to pick up changes.
func (a *App) reloadCatalog(path string) {
	catalog, err := layout.Load(path)
	if err != nil {
		log.Printf("layout reload rejected: %v", err)
		return
	}
	a.mu.Lock()
	a.catalog = catalog
	a.mu.Unlock()
	log.Printf("layout catalog reloaded from %s", path)
	a.bus.Publish(events.Event{
		Kind:    events.KindLayoutChanged,
		Payload: map[string]any{"path": path},
	})
}

// Close stops any session and releases the store.
func (a *App) Close() error {
	if err := a.StopCapture(); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return a.store.Close()
}

// CurrentRanking returns today's board for a region.
func (a *App) CurrentRanking(region string) []ranking.Entry {
	return a.board.Ranking(region, config.Day(config.Now()))
}

// History returns a good's persisted records, newest first.
func (a *App) History(ctx context.Context, good string, limit int) ([]history.Record, error) {
	return a.store.HistoryByGood(ctx, good, limit)
}

// Subscribe attaches a listener to the pipeline event stream.
func (a *App) Subscribe() <-chan events.Event { return a.bus.Subscribe() }

func parseFor(cat *layout.Catalog, cfg config.Config) *parse.Parser {
	return parse.New(cat, cfg.ConfidenceThreshold, cfg.MaxPlausiblePrice, cfg.NameTolerance)
}

func (a *App) Store() *history.Store { return a.store }
func (a *App) Board() *ranking.Board { return a.board }
func (a *App) Bus() *events.Bus      { return a.bus }
func (a *App) Mux() *http.ServeMux   { return a.mux }
