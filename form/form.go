// Package form drives the collection-point creation flow: geolocation,
// catalog and state lookups, city lookup per selected state, item selection
// and submission.
package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ecoleta/models"
)

type State string

const (
	StateIdle        State = "idle"
	StateGeolocating State = "geolocating"
	StateReady       State = "ready"
	StateSubmitting  State = "submitting"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// NoSelection is the placeholder value of the UF and city selectors.
const NoSelection = "0"

var (
	// ErrSuperseded is returned by SelectUF when a newer selection replaced it
	// before its cities arrived.
	ErrSuperseded   = errors.New("form: state selection superseded")
	// ErrSubmitting is returned when Submit is called while a submission is in flight.
	ErrSubmitting   = errors.New("form: submission already in progress")
	ErrUnknownField = errors.New("form: unknown field")
)

type Geolocator interface {
	CurrentPosition(ctx context.Context) (lat, lon float64, err error)
}

type Catalog interface {
	ListItems(ctx context.Context) ([]models.Item, error)
}

type Locations interface {
	States(ctx context.Context) ([]string, error)
	Cities(ctx context.Context, uf string) ([]string, error)
}

type Submitter interface {
	CreatePoint(ctx context.Context, input models.CreatePointInput) (models.Point, error)
}

// View is a copy of the form state for rendering.
type View struct {
	State           State
	Items           []models.Item
	UFs             []string
	Cities          []string
	InitialPosition [2]float64
	Position        [2]float64
	SelectedUF      string
	SelectedCity    string
	SelectedItems   []int64
	Name            string
	Email           string
	Whatsapp        string
	Created         *models.Point
	Err             error
}

type Form struct {
	geo       Geolocator
	catalog   Catalog
	locations Locations
	submitter Submitter

	mu              sync.Mutex
	state           State
	items           []models.Item
	ufs             []string
	cities          []string
	initialPosition [2]float64
	position        [2]float64
	selectedUF      string
	selectedCity    string
	selectedItems   []int64
	name            string
	email           string
	whatsapp        string
	created         *models.Point
	err             error

	// cityGen identifies the latest city fetch; cancelCity aborts it.
	cityGen    uint64
	cancelCity context.CancelFunc
}

func New(geo Geolocator, catalog Catalog, locations Locations, submitter Submitter) *Form {
	return &Form{
		geo:          geo,
		catalog:      catalog,
		locations:    locations,
		submitter:    submitter,
		state:        StateIdle,
		selectedUF:   NoSelection,
		selectedCity: NoSelection,
	}
}

// Load geolocates the device and fetches the catalog and UF list
// concurrently. Each result updates its own part of the form as it arrives.
// A geolocation failure keeps the (0, 0) default; catalog and UF failures
// are returned.
func (f *Form) Load(ctx context.Context) error {
	f.setState(StateGeolocating)

	var (
		wg         sync.WaitGroup
		catalogErr error
		ufErr      error
	)
	wg.Add(3)

	go func() {
		defer wg.Done()
		if f.geo == nil {
			return
		}
		lat, lon, err := f.geo.CurrentPosition(ctx)
		if err != nil {
			slog.Warn("geolocation unavailable", "error", err)
			return
		}
		f.mu.Lock()
		f.initialPosition = [2]float64{lat, lon}
		f.position = [2]float64{lat, lon}
		f.mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		items, err := f.catalog.ListItems(ctx)
		if err != nil {
			catalogErr = fmt.Errorf("load items: %w", err)
			return
		}
		f.mu.Lock()
		f.items = items
		f.mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		ufs, err := f.locations.States(ctx)
		if err != nil {
			ufErr = fmt.Errorf("load states: %w", err)
			return
		}
		f.mu.Lock()
		f.ufs = ufs
		f.mu.Unlock()
	}()

	wg.Wait()
	f.setState(StateReady)
	return errors.Join(catalogErr, ufErr)
}

// SelectUF changes the selected state, clears the city list and selected
// city, then loads the cities of uf. Selecting NoSelection or "" only clears.
// Results of an older selection are discarded.
func (f *Form) SelectUF(ctx context.Context, uf string) error {
	if uf == "" {
		uf = NoSelection
	}

	f.mu.Lock()
	if f.cancelCity != nil {
		f.cancelCity()
		f.cancelCity = nil
	}
	f.cityGen++
	gen := f.cityGen
	f.selectedUF = uf
	f.selectedCity = NoSelection
	f.cities = nil
	if uf == NoSelection {
		f.mu.Unlock()
		return nil
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	f.cancelCity = cancel
	f.mu.Unlock()

	cities, err := f.locations.Cities(fetchCtx, uf)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.cityGen {
		cancel()
		return ErrSuperseded
	}
	f.cancelCity = nil
	cancel()
	if err != nil {
		return fmt.Errorf("load cities of %s: %w", uf, err)
	}
	f.cities = cities
	return nil
}

func (f *Form) SelectCity(city string) {
	if city == "" {
		city = NoSelection
	}
	f.mu.Lock()
	f.selectedCity = city
	f.mu.Unlock()
}

// SetField updates one of the text inputs: name, email or whatsapp.
func (f *Form) SetField(field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch field {
	case "name":
		f.name = value
	case "email":
		f.email = value
	case "whatsapp":
		f.whatsapp = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// ToggleItem adds id to the selection if absent and removes it otherwise.
func (f *Form) ToggleItem(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, selected := range f.selectedItems {
		if selected == id {
			f.selectedItems = append(f.selectedItems[:i:i], f.selectedItems[i+1:]...)
			return
		}
	}
	f.selectedItems = append(f.selectedItems, id)
}

// SelectPosition records a map click, overriding the geolocated position.
func (f *Form) SelectPosition(lat, lon float64) {
	f.mu.Lock()
	f.position = [2]float64{lat, lon}
	f.mu.Unlock()
}

// Payload composes the submission body from the current state.
func (f *Form) Payload() models.CreatePointInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payloadLocked()
}

func (f *Form) payloadLocked() models.CreatePointInput {
	return models.CreatePointInput{
		Name:      f.name,
		Email:     f.email,
		Whatsapp:  f.whatsapp,
		UF:        f.selectedUF,
		City:      f.selectedCity,
		Latitude:  f.position[0],
		Longitude: f.position[1],
		Items:     append([]int64{}, f.selectedItems...),
	}
}

// Submit sends the payload once. Success moves the form to done, failure to
// failed; the error is returned either way.
func (f *Form) Submit(ctx context.Context) (models.Point, error) {
	f.mu.Lock()
	if f.state == StateSubmitting {
		f.mu.Unlock()
		return models.Point{}, ErrSubmitting
	}
	f.state = StateSubmitting
	f.err = nil
	payload := f.payloadLocked()
	f.mu.Unlock()

	point, err := f.submitter.CreatePoint(ctx, payload)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = StateFailed
		f.err = err
		return models.Point{}, fmt.Errorf("submit point: %w", err)
	}
	f.state = StateDone
	f.created = &point
	return point, nil
}

func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// View returns a snapshot safe to read without holding the form.
func (f *Form) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return View{
		State:           f.state,
		Items:           append([]models.Item(nil), f.items...),
		UFs:             append([]string(nil), f.ufs...),
		Cities:          append([]string(nil), f.cities...),
		InitialPosition: f.initialPosition,
		Position:        f.position,
		SelectedUF:      f.selectedUF,
		SelectedCity:    f.selectedCity,
		SelectedItems:   append([]int64(nil), f.selectedItems...),
		Name:            f.name,
		Email:           f.email,
		Whatsapp:        f.whatsapp,
		Created:         f.created,
		Err:             f.err,
	}
}

func (f *Form) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}
