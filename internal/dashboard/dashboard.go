// Package dashboard implements the host dashboard: one day's reservations,
// every table, day navigation and the finish-reservation action.
//
// The dashboard owns its state and request lifecycle. Surfaces (web, CLI)
// supply confirmation and navigation and render View snapshots.
package dashboard

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"hostdesk/internal/datetime"
	"hostdesk/internal/events"
	"hostdesk/internal/metrics"
	"hostdesk/internal/models"

	"github.com/rs/zerolog"
)

// FinishPrompt is the question asked before a table is finished.
const FinishPrompt = "Is this table ready to seat new guests?\nThis cannot be undone."

const (
	resourceReservations = "reservations"
	resourceTables       = "tables"
)

// View is a snapshot of the dashboard state.
type View struct {
	Date         string
	Reservations []models.Reservation
	// Error is the failure of the last reservation load, nil otherwise.
	Error  error
	Tables []models.Table
}

// Dashboard holds the reservations and tables shown for one date.
type Dashboard struct {
	api         API
	confirmer   Confirmer
	navigator   Navigator
	clock       datetime.Clock
	events      EventPublisher
	log         *zerolog.Logger
	metrics     *metrics.Metrics
	loadTimeout time.Duration

	mu           sync.Mutex
	ctx          context.Context
	stop         context.CancelFunc
	date         string
	reservations []models.Reservation
	resErr       error
	tables       []models.Table
	resFetch     *Fetch
	tableFetch   *Fetch
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithConfirmer sets the confirmation provider. The default declines.
func WithConfirmer(c Confirmer) Option {
	return func(d *Dashboard) { d.confirmer = c }
}

// WithNavigator sets where navigation locations go. The default drops them.
func WithNavigator(n Navigator) Option {
	return func(d *Dashboard) { d.navigator = n }
}

// WithClock sets the clock used for Today and event times.
func WithClock(c datetime.Clock) Option {
	return func(d *Dashboard) { d.clock = c }
}

// WithEvents publishes finish outcomes to p.
func WithEvents(p EventPublisher) Option {
	return func(d *Dashboard) { d.events = p }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *zerolog.Logger) Option {
	return func(d *Dashboard) { d.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dashboard) { d.metrics = m }
}

// WithLoadTimeout bounds each list request. Zero means no bound.
func WithLoadTimeout(timeout time.Duration) Option {
	return func(d *Dashboard) { d.loadTimeout = timeout }
}

// New creates an unmounted dashboard.
func New(api API, opts ...Option) *Dashboard {
	d := &Dashboard{
		api:          api,
		reservations: []models.Reservation{},
		tables:       []models.Table{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.confirmer == nil {
		d.confirmer = ConfirmFunc(func(context.Context, string) bool { return false })
	}
	if d.navigator == nil {
		d.navigator = NavigatorFunc(func(string) {})
	}
	if d.clock == nil {
		d.clock = datetime.SystemClock(nil)
	}
	if d.log == nil {
		nop := zerolog.Nop()
		d.log = &nop
	}
	return d
}

// Mount starts the dashboard for date and loads reservations and tables.
// Cancelling ctx has the same effect as Unmount.
func (d *Dashboard) Mount(ctx context.Context, date string) {
	d.mu.Lock()
	if d.stop != nil {
		d.stop()
	}
	d.ctx, d.stop = context.WithCancel(ctx)
	d.date = date
	d.mu.Unlock()

	d.log.Debug().Str("date", date).Msg("dashboard mounted")
	d.LoadDashboard()
	d.LoadTables()
}

// SetDate switches the dashboard to date and reloads reservations.
// Tables are not reloaded. It returns nil when date is unchanged.
func (d *Dashboard) SetDate(date string) *Fetch {
	d.mu.Lock()
	if date == d.date {
		d.mu.Unlock()
		return nil
	}
	d.date = date
	d.mu.Unlock()
	return d.LoadDashboard()
}

// Unmount cancels every in-flight load. No state changes afterwards.
func (d *Dashboard) Unmount() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		d.stop()
	}
	if d.resFetch != nil {
		d.resFetch.Cancel()
	}
	if d.tableFetch != nil {
		d.tableFetch.Cancel()
	}
	d.log.Debug().Str("date", d.date).Msg("dashboard unmounted")
}

// Date returns the date the dashboard shows.
func (d *Dashboard) Date() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.date
}

// LoadDashboard reloads reservations for the current date, cancelling any
// reservation load still in flight. A failure keeps the previous list.
func (d *Dashboard) LoadDashboard() *Fetch {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.mountedLocked() {
		return cancelledFetch(resourceReservations)
	}
	d.resErr = nil
	if d.resFetch != nil {
		d.resFetch.Cancel()
	}
	f := newFetch(d.ctx, resourceReservations, d.loadTimeout)
	d.resFetch = f
	go d.runReservations(f, d.date)
	return f
}

// LoadTables reloads every table, cancelling any table load still in flight.
// Failures are logged and leave the tables as they were.
func (d *Dashboard) LoadTables() *Fetch {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.mountedLocked() {
		return cancelledFetch(resourceTables)
	}
	if d.tableFetch != nil {
		d.tableFetch.Cancel()
	}
	f := newFetch(d.ctx, resourceTables, d.loadTimeout)
	d.tableFetch = f
	go d.runTables(f)
	return f
}

func (d *Dashboard) mountedLocked() bool {
	return d.ctx != nil && d.ctx.Err() == nil
}

func (d *Dashboard) runReservations(f *Fetch, date string) {
	defer f.finish()

	ctx, cancel := f.requestContext()
	list, err := d.api.ListReservations(ctx, date)
	cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) || !f.settle(FetchErrored) {
			f.Cancel()
			d.metrics.IncFetch(resourceReservations, FetchCancelled.String())
			return
		}
		d.resErr = err
		d.metrics.IncFetch(resourceReservations, FetchErrored.String())
		d.log.Warn().Err(err).Str("date", date).Msg("load reservations failed")
		return
	}
	if !f.settle(FetchResolved) {
		d.metrics.IncFetch(resourceReservations, FetchCancelled.String())
		return
	}
	if list == nil {
		list = []models.Reservation{}
	}
	d.reservations = list
	d.metrics.IncFetch(resourceReservations, FetchResolved.String())
}

func (d *Dashboard) runTables(f *Fetch) {
	defer f.finish()

	ctx, cancel := f.requestContext()
	list, err := d.api.ListTables(ctx)
	cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) || !f.settle(FetchErrored) {
			f.Cancel()
			d.metrics.IncFetch(resourceTables, FetchCancelled.String())
			return
		}
		d.metrics.IncFetch(resourceTables, FetchErrored.String())
		d.log.Warn().Err(err).Msg("load tables failed")
		return
	}
	if !f.settle(FetchResolved) {
		d.metrics.IncFetch(resourceTables, FetchCancelled.String())
		return
	}
	if list == nil {
		list = []models.Table{}
	}
	d.tables = list
	d.metrics.IncFetch(resourceTables, FetchResolved.String())
}

// FinishReservation asks for confirmation and frees tableID. It reports
// whether the table was finished. Declining returns (false, nil). A failed
// request is logged and returned but never shown in the View.
func (d *Dashboard) FinishReservation(ctx context.Context, tableID int64) (bool, error) {
	if !d.confirmer.Confirm(ctx, FinishPrompt) {
		d.metrics.IncFinish("declined")
		d.log.Debug().Int64("table_id", tableID).Msg("finish declined")
		return false, nil
	}

	date := d.Date()
	if err := d.api.FinishReservation(ctx, tableID); err != nil {
		d.metrics.IncFinish("failed")
		d.log.Error().Err(err).Int64("table_id", tableID).Str("date", date).Msg("finish reservation failed")
		d.publish(events.TableFinishFailed, events.TableFinish{
			TableID: tableID,
			Date:    date,
			Error:   err.Error(),
			At:      d.clock(),
		})
		return false, err
	}

	d.metrics.IncFinish("finished")
	d.log.Info().Int64("table_id", tableID).Str("date", date).Msg("table finished")
	d.publish(events.TableFinished, events.TableFinish{TableID: tableID, Date: date, At: d.clock()})

	d.LoadDashboard()
	d.LoadTables()
	return true, nil
}

func (d *Dashboard) publish(eventType string, payload events.TableFinish) {
	if d.events == nil {
		return
	}
	if err := d.events.PublishJSON(eventType, payload); err != nil {
		d.log.Warn().Err(err).Str("event", eventType).Msg("publish event failed")
	}
}

// Location is the dashboard address for date.
func Location(date string) string {
	return "/dashboard?date=" + url.QueryEscape(date)
}

// DateFromLocation extracts the date from a dashboard location.
func DateFromLocation(location string) (string, bool) {
	u, err := url.Parse(location)
	if err != nil || u.Path != "/dashboard" {
		return "", false
	}
	date := u.Query().Get("date")
	return date, date != ""
}

// PreviousDay navigates to the day before date.
func (d *Dashboard) PreviousDay(date string) error {
	prev, err := datetime.Previous(date)
	if err != nil {
		return err
	}
	d.navigator.Push(Location(prev))
	return nil
}

// NextDay navigates to the day after date.
func (d *Dashboard) NextDay(date string) error {
	next, err := datetime.Next(date)
	if err != nil {
		return err
	}
	d.navigator.Push(Location(next))
	return nil
}

// Today navigates to the current day.
func (d *Dashboard) Today() {
	d.navigator.Push(Location(datetime.Today(d.clock)))
}

// View returns a copy of the current state.
func (d *Dashboard) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return View{
		Date:         d.date,
		Reservations: clone(d.reservations),
		Error:        d.resErr,
		Tables:       clone(d.tables),
	}
}

func clone[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// Wait blocks until the current loads have settled, including loads started
// while waiting, or ctx is done.
func (d *Dashboard) Wait(ctx context.Context) error {
	for {
		d.mu.Lock()
		res, tables := d.resFetch, d.tableFetch
		d.mu.Unlock()

		for _, f := range []*Fetch{res, tables} {
			if f == nil {
				continue
			}
			select {
			case <-f.Done():
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		d.mu.Lock()
		settled := d.resFetch == res && d.tableFetch == tables
		d.mu.Unlock()
		if settled {
			return nil
		}
	}
}
