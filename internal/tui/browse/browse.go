// Package browse is the interactive marketplace browser: categories, their
// materials, and the listings of a material, with debounced search,
// infinite scroll and listing mutations.
package browse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/matmarket/market-cli/internal/data"
	"github.com/matmarket/market-cli/internal/market"
	"github.com/matmarket/market-cli/internal/output"
	"github.com/matmarket/market-cli/internal/presenter"
	"github.com/matmarket/market-cli/internal/tui"
	"github.com/matmarket/market-cli/internal/tui/listingform"
)

// LookAhead is how many rows from the end of the loaded list the cursor
// may come before the next page is requested.
const LookAhead = data.DefaultLookAhead

// Options configures a browse model.
type Options struct {
	// View is the starting view. The zero value is the category root.
	View market.ViewMode
	// Search is the initial search query, applied without debounce.
	Search string
	// Status filters listings by status.
	Status   string
	Language string
	PageSize int
	Debounce time.Duration
	Observer data.FetchObserver
	Styles   *tui.Styles
}

// searchSettledMsg carries a query the debouncer has settled on.
type searchSettledMsg struct {
	query string
}

// editLoadedMsg carries a listing fetched for the edit form.
type editLoadedMsg struct {
	listing market.Listing
	err     error
}

type formKind int

const (
	formNone formKind = iota
	formCreate
	formEdit
	formDelete
)

// row is one rendered list entry, independent of the entity type.
type row struct {
	id    string
	label string
	meta  string
}

// Model is the bubbletea model for market browse. Everything it loads
// lives in its realm and is discarded when the model quits.
type Model struct {
	svc    *market.Service
	realm  *data.Realm
	styles *tui.Styles
	locale presenter.Locale
	keys   KeyMap

	view   market.ViewMode
	cursor int
	detail bool

	categories *data.Synchronizer[market.Category]
	materials  *data.Synchronizer[market.Material]
	listings   *data.Synchronizer[market.Listing]

	search    textinput.Model
	searching bool
	query     string
	debouncer *data.Debouncer
	settled   chan string

	status string

	spinner spinner.Model
	toast   tui.Toast
	pending int

	form       *huh.Form
	formKind   formKind
	formValues *listingform.Values
	formID     string
	confirmed  bool

	width, height int
	quitting      bool
}

// New creates a browse model. ctx bounds every request the model issues.
func New(ctx context.Context, svc *market.Service, opts Options) *Model {
	styles := opts.Styles
	if styles == nil {
		styles = tui.NewStyles()
	}

	realm := data.NewRealm("browse", ctx)
	syncOpts := []data.SyncOption{data.WithPageSize(opts.PageSize)}
	if opts.Observer != nil {
		syncOpts = append(syncOpts, data.WithObserver(opts.Observer))
	}

	settled := make(chan string, 1)
	m := &Model{
		svc:     svc,
		realm:   realm,
		styles:  styles,
		locale:  presenter.DetectLocale(opts.Language),
		keys:    DefaultKeyMap(),
		view:    opts.View,
		query:   strings.TrimSpace(opts.Search),
		status:  opts.Status,
		settled: settled,
		spinner: tui.NewSpinnerModel(styles),
		toast:   tui.NewToast(styles),
	}

	m.categories = data.Scoped(realm, "categories", func() *data.Synchronizer[market.Category] {
		return svc.Categories.Synchronizer(syncOpts...)
	})
	m.materials = data.Scoped(realm, "materials", func() *data.Synchronizer[market.Material] {
		return svc.Materials.Synchronizer(syncOpts...)
	})
	m.listings = data.Scoped(realm, "listings", func() *data.Synchronizer[market.Listing] {
		return svc.Listings.Synchronizer(syncOpts...)
	})
	m.debouncer = data.Scoped(realm, "search", func() *data.Debouncer {
		return data.NewDebouncer(opts.Debounce, func(q string) {
			// Latest settled query wins if the previous one was not consumed.
			for {
				select {
				case settled <- q:
					return
				default:
					select {
					case <-settled:
					default:
					}
				}
			}
		})
	})

	m.search = textinput.New()
	m.search.Prompt = "/ "
	m.search.Placeholder = "search"
	m.search.SetValue(m.query)

	return m
}

// Init starts the first fetch, the spinner and the search listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.reload(), m.spinner.Tick, m.listen())
}

// ViewMode returns the current view mode.
func (m *Model) ViewMode() market.ViewMode { return m.view }

// Cursor returns the selected row index.
func (m *Model) Cursor() int { return m.cursor }

// Query returns the search query currently applied.
func (m *Model) Query() string { return m.query }

// Realm returns the model's realm.
func (m *Model) Realm() *data.Realm { return m.realm }

// Toast returns the toast component.
func (m *Model) Toast() *tui.Toast { return &m.toast }

// FormOpen reports whether a form is showing.
func (m *Model) FormOpen() bool { return m.form != nil }

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.toast.SetWidth(msg.Width)
		m.search.Width = max(msg.Width-4, 10)
		return m, nil

	case data.PageLoadedMsg:
		return m, m.pageLoaded(msg)

	case data.MutationDoneMsg:
		return m, m.mutationDone(msg)

	case searchSettledMsg:
		// Input typed in a view that has since been left was cancelled.
		if msg.query != m.debouncer.Raw() || msg.query == m.query {
			return m, m.listen()
		}
		m.query = msg.query
		return m, tea.Batch(m.reload(), m.listen())

	case editLoadedMsg:
		if msg.err != nil {
			return m, m.toast.Show(output.UserMessage(msg.err), tui.ToastError)
		}
		values := listingform.From(msg.listing)
		return m, m.openForm(formEdit, string(msg.listing.ID), &values)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	m.toast.Update(msg)

	if m.form != nil {
		return m, m.updateForm(msg)
	}
	if k, ok := msg.(tea.KeyMsg); ok {
		if m.searching {
			return m, m.searchKey(k)
		}
		return m, m.navigate(k)
	}
	return m, nil
}

// listen waits for the next settled search query. It returns nil once
// the realm is torn down.
func (m *Model) listen() tea.Cmd {
	ctx := m.realm.Context()
	settled := m.settled
	return func() tea.Msg {
		select {
		case q := <-settled:
			return searchSettledMsg{query: q}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Model) filters() data.Filters {
	f := m.view.Filters().With("search", m.query)
	if m.view.Kind() == market.ViewListings {
		f = f.With("status", m.status)
	}
	return f
}

// reload resets the active view's collection with the current filters.
func (m *Model) reload() tea.Cmd {
	m.cursor = 0
	m.detail = false
	ctx, f := m.realm.Context(), m.filters()
	switch m.view.Kind() {
	case market.ViewMaterials:
		return m.materials.Reset(ctx, f)
	case market.ViewListings:
		return m.listings.Reset(ctx, f)
	default:
		return m.categories.Reset(ctx, f)
	}
}

// lookAhead requests the next page when the cursor is near the end.
func (m *Model) lookAhead() tea.Cmd {
	ctx := m.realm.Context()
	switch m.view.Kind() {
	case market.ViewMaterials:
		return m.materials.RequestNextNear(ctx, m.cursor, LookAhead)
	case market.ViewListings:
		return m.listings.RequestNextNear(ctx, m.cursor, LookAhead)
	default:
		return m.categories.RequestNextNear(ctx, m.cursor, LookAhead)
	}
}

func (m *Model) activeState() data.PageState {
	switch m.view.Kind() {
	case market.ViewMaterials:
		return m.materials.State()
	case market.ViewListings:
		return m.listings.State()
	default:
		return m.categories.State()
	}
}

func (m *Model) pageLoaded(msg data.PageLoadedMsg) tea.Cmd {
	if msg.Stale || msg.Key != m.view.Kind().String() {
		return nil
	}
	m.clampCursor()
	if msg.Err != nil {
		return m.toast.Show(output.UserMessage(msg.Err), tui.ToastError)
	}
	return m.lookAhead()
}

func (m *Model) mutationDone(msg data.MutationDoneMsg) tea.Cmd {
	m.pending = max(m.pending-1, 0)
	if msg.Err != nil {
		return m.toast.Show(output.UserMessage(msg.Err), tui.ToastError)
	}
	m.clampCursor()

	text := "Listing " + pastTense(msg.Kind)
	if msg.SecondaryErr != nil {
		return m.toast.Show(text+", but "+output.UserMessage(msg.SecondaryErr), tui.ToastWarning)
	}
	return tea.Batch(m.toast.Show(text, tui.ToastInfo), m.lookAhead())
}

func pastTense(kind data.MutationKind) string {
	switch kind {
	case data.MutationCreate:
		return "created"
	case data.MutationDelete:
		return "deleted"
	default:
		return "updated"
	}
}

func (m *Model) clampCursor() {
	n := len(m.rows())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) searchKey(k tea.KeyMsg) tea.Cmd {
	switch k.String() {
	case "esc", "enter":
		m.searching = false
		m.search.Blur()
		return nil
	case "ctrl+c":
		return m.quit()
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(k)
	m.debouncer.Input(strings.TrimSpace(m.search.Value()))
	return cmd
}

func (m *Model) navigate(k tea.KeyMsg) tea.Cmd {
	rows := m.rows()
	listings := m.view.Kind() == market.ViewListings

	switch {
	case key.Matches(k, m.keys.Quit):
		return m.quit()

	case key.Matches(k, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m.lookAhead()

	case key.Matches(k, m.keys.Down):
		if m.cursor < len(rows)-1 {
			m.cursor++
		}
		return m.lookAhead()

	case key.Matches(k, m.keys.Open):
		if len(rows) == 0 {
			return nil
		}
		if listings {
			m.detail = !m.detail
			return nil
		}
		next, ok := m.view.Drill(rows[m.cursor].id, rows[m.cursor].label)
		if !ok {
			return nil
		}
		m.enter(next)
		return m.reload()

	case key.Matches(k, m.keys.Back):
		if m.detail {
			m.detail = false
			return nil
		}
		prev, ok := m.view.Back()
		if !ok {
			return nil
		}
		m.enter(prev)
		return m.reload()

	case key.Matches(k, m.keys.Search):
		m.searching = true
		return m.search.Focus()

	case key.Matches(k, m.keys.Refresh):
		return m.reload()

	case listings && key.Matches(k, m.keys.Status):
		m.status = nextStatus(m.status)
		return tea.Batch(m.reload(), m.toast.Show("Status: "+orAll(m.locale.Label(m.status)), tui.ToastInfo))

	case listings && key.Matches(k, m.keys.New):
		values := listingform.Values{Type: string(market.ListingSale), MaterialID: m.view.MaterialID()}
		return m.openForm(formCreate, "", &values)

	case listings && key.Matches(k, m.keys.Edit) && len(rows) > 0:
		id := rows[m.cursor].id
		ctx := m.realm.Context()
		return func() tea.Msg {
			l, err := m.svc.Listings.GetForEdit(ctx, id)
			return editLoadedMsg{listing: l, err: err}
		}

	case listings && key.Matches(k, m.keys.Delete) && len(rows) > 0:
		return m.openForm(formDelete, rows[m.cursor].id, nil)
	}
	return nil
}

// enter switches views. The search query belongs to the view it was typed in.
func (m *Model) enter(v market.ViewMode) {
	m.view = v
	m.query = ""
	m.search.SetValue("")
	m.debouncer.Cancel()
	select {
	case <-m.settled:
	default:
	}
}

func nextStatus(current string) string {
	if current == "" {
		return string(market.ListingStatuses[0])
	}
	for i, s := range market.ListingStatuses {
		if string(s) == current && i+1 < len(market.ListingStatuses) {
			return string(market.ListingStatuses[i+1])
		}
	}
	return ""
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}

func (m *Model) openForm(kind formKind, id string, values *listingform.Values) tea.Cmd {
	m.formKind = kind
	m.formID = id
	m.formValues = values
	m.confirmed = false

	switch kind {
	case formDelete:
		m.form = tui.DeleteConfirmForm("this listing", &m.confirmed)
	case formEdit:
		m.form = listingform.New("Edit listing", values, nil)
	default:
		m.form = listingform.New("New listing", values, nil)
	}
	if m.width > 0 {
		m.form = m.form.WithWidth(m.width)
	}
	return m.form.Init()
}

func (m *Model) closeForm() {
	m.form = nil
	m.formKind = formNone
	m.formValues = nil
	m.formID = ""
}

func (m *Model) updateForm(msg tea.Msg) tea.Cmd {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		m.closeForm()
		return nil
	}

	model, cmd := m.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		return m.submitForm()
	case huh.StateAborted:
		m.closeForm()
		return nil
	}
	return cmd
}

// submitForm turns a completed form into a listing mutation.
func (m *Model) submitForm() tea.Cmd {
	kind, id, values, confirmed := m.formKind, m.formID, m.formValues, m.confirmed
	m.closeForm()
	return m.submit(kind, id, values, confirmed)
}

func (m *Model) submit(kind formKind, id string, values *listingform.Values, confirmed bool) tea.Cmd {
	ctx := m.realm.Context()
	listings := m.svc.Listings

	var run func(context.Context) data.MutationResult[market.Listing]
	switch kind {
	case formDelete:
		if !confirmed {
			return nil
		}
		run = func(ctx context.Context) data.MutationResult[market.Listing] {
			return listings.DeleteResult(ctx, id)
		}
	case formCreate, formEdit:
		in, err := values.Input()
		if err == nil && kind == formCreate {
			err = in.Validate()
		}
		if err != nil {
			return m.toast.Show(err.Error(), tui.ToastError)
		}
		if kind == formCreate {
			run = func(ctx context.Context) data.MutationResult[market.Listing] {
				return listings.CreateResult(ctx, in)
			}
		} else {
			run = func(ctx context.Context) data.MutationResult[market.Listing] {
				return listings.UpdateResult(ctx, id, in)
			}
		}
	default:
		return nil
	}

	m.pending++
	return m.listings.Mutate(ctx, run)
}

// quit tears down the realm: in-flight requests are canceled, the
// debouncer stops and every collection is discarded.
func (m *Model) quit() tea.Cmd {
	m.quitting = true
	m.realm.Teardown()
	return tea.Quit
}

// rows renders the active collection into list entries.
func (m *Model) rows() []row {
	tag := m.locale.Tag()
	var rows []row
	switch m.view.Kind() {
	case market.ViewCategories:
		for _, c := range m.categories.Get().Items {
			rows = append(rows, row{id: string(c.ID), label: c.Name.Resolve(tag)})
		}
	case market.ViewMaterials:
		for _, mat := range m.materials.Get().Items {
			rows = append(rows, row{id: string(mat.ID), label: mat.Name.Resolve(tag), meta: mat.Unit})
		}
	case market.ViewListings:
		for _, l := range m.listings.Get().Items {
			rows = append(rows, row{id: string(l.ID), label: l.Title.Resolve(tag), meta: m.listingMeta(l)})
		}
	}
	return rows
}

func (m *Model) listingMeta(l market.Listing) string {
	parts := []string{
		m.locale.FormatPrice(l.Price, l.Currency),
		m.locale.FormatQuantity(l.Quantity, l.Unit),
		m.locale.Label(string(l.Type)),
		m.locale.Label(string(l.Status)),
	}
	if l.Type == market.ListingAuction && l.AuctionEndsAt != nil {
		parts = append(parts, m.locale.FormatTimeLeft(*l.AuctionEndsAt, time.Now()))
	}
	return strings.Join(parts, " · ")
}

func (m *Model) selectedListing() (market.Listing, bool) {
	items := m.listings.Get().Items
	if m.view.Kind() != market.ViewListings || m.cursor >= len(items) {
		return market.Listing{}, false
	}
	return items[m.cursor], true
}

// Rows returns the labels of the visible rows.
func (m *Model) Rows() []string {
	rows := m.rows()
	labels := make([]string, len(rows))
	for i, r := range rows {
		labels[i] = r.label
	}
	return labels
}

// Run starts the browse program on the terminal.
func Run(ctx context.Context, svc *market.Service, opts Options) error {
	m := New(ctx, svc, opts)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if !m.realm.TornDown() {
		m.realm.Teardown()
	}
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	return nil
}
