// Package tableview derives the visible slice of an in-memory record set
// from filter, sort, pagination, visibility and selection state. The
// derivation order is fixed: filter, then sort, then page slice. It holds
// no I/O and is private to a single table instance.
package tableview

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Direction is the sort direction of a column.
type Direction int

const (
	DirNone Direction = iota
	DirAsc
	DirDesc
)

func (d Direction) String() string {
	switch d {
	case DirAsc:
		return "asc"
	case DirDesc:
		return "desc"
	}
	return "none"
}

// Column describes how to extract, label, sort and render one field.
type Column[T any] struct {
	Key      string
	Title    string
	Accessor func(T) any
	Sortable bool
	Hidden   bool

	// Compare overrides the default comparator. Required for sortable
	// columns whose accessor yields a value the default comparator
	// cannot order.
	Compare func(a, b T) int

	// Render overrides the default cell text (fmt.Sprint of the accessor).
	Render func(T) string
}

// PageInfo is pagination metadata for the current state.
type PageInfo struct {
	PageIndex    int
	PageCount    int
	TotalRows    int
	FilteredRows int
}

// View holds one table's interaction state. Not safe for concurrent use;
// bubbletea's update loop is single-threaded, matching the model here.
type View[T any] struct {
	columns []Column[T]
	rows    []T

	hidden       map[string]bool
	sortKey      string
	sortDir      Direction
	filterKey    string
	filterNeedle string
	pageIndex    int
	pageSize     int

	rowKey   func(T) string
	selected map[string]bool
}

// Option configures a View at construction.
type Option[T any] func(*View[T])

// WithPageSize sets the initial page size (values below 1 are coerced to 1).
func WithPageSize[T any](n int) Option[T] {
	return func(v *View[T]) {
		if n < 1 {
			n = 1
		}
		v.pageSize = n
	}
}

// WithSort sets the initial sort column and direction.
func WithSort[T any](key string, dir Direction) Option[T] {
	return func(v *View[T]) {
		v.sortKey = key
		v.sortDir = dir
	}
}

// WithFilter sets the initial filter column and needle.
func WithFilter[T any](key, needle string) Option[T] {
	return func(v *View[T]) {
		v.filterKey = key
		v.filterNeedle = needle
	}
}

// WithRowKey supplies a stable row identity used by selection. Without it
// selection falls back to the row's position in the source slice.
func WithRowKey[T any](fn func(T) string) Option[T] {
	return func(v *View[T]) { v.rowKey = fn }
}

const defaultPageSize = 10

// New validates the column set and builds a view. Duplicate keys, missing
// accessors and sortable columns without a usable comparison path are
// caller programming errors and fail here rather than at render time.
func New[T any](columns []Column[T], rows []T, opts ...Option[T]) (*View[T], error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c.Key == "" {
			return nil, fmt.Errorf("tableview: column with empty key (title %q)", c.Title)
		}
		if seen[c.Key] {
			return nil, fmt.Errorf("tableview: duplicate column key %q", c.Key)
		}
		seen[c.Key] = true
		if c.Accessor == nil {
			return nil, fmt.Errorf("tableview: column %q has no accessor", c.Key)
		}
	}

	v := &View[T]{
		columns:  columns,
		rows:     rows,
		hidden:   make(map[string]bool, len(columns)),
		pageSize: defaultPageSize,
		selected: make(map[string]bool),
	}
	for _, c := range columns {
		if c.Hidden {
			v.hidden[c.Key] = true
		}
	}
	for _, opt := range opts {
		opt(v)
	}

	// Probe sortable columns against the first row: a value the default
	// comparator cannot order needs a custom Compare.
	if len(rows) > 0 {
		for _, c := range columns {
			if !c.Sortable || c.Compare != nil {
				continue
			}
			if val := c.Accessor(rows[0]); !orderable(val) {
				return nil, fmt.Errorf("tableview: sortable column %q yields %T and has no comparator", c.Key, val)
			}
		}
	}

	if v.sortKey != "" {
		if col := v.column(v.sortKey); col == nil || !col.Sortable {
			v.sortKey = ""
			v.sortDir = DirNone
		}
	}
	v.clampPage()
	return v, nil
}

// SetRows replaces the data set. Filter, sort, visibility and selection
// state carry over; the page index is re-clamped against the new row count.
func (v *View[T]) SetRows(rows []T) {
	v.rows = rows
	v.clampPage()
}

// SetFilter applies a case-insensitive substring filter on one column.
// Unknown keys are ignored; an empty needle clears the filter. The page
// index resets to 0 because the previous page may no longer exist.
func (v *View[T]) SetFilter(key, needle string) {
	if needle != "" && v.column(key) == nil {
		return
	}
	v.filterKey = key
	v.filterNeedle = needle
	if needle == "" {
		v.filterKey = ""
	}
	v.pageIndex = 0
}

// Filter reports the active filter column and needle.
func (v *View[T]) Filter() (key, needle string) {
	return v.filterKey, v.filterNeedle
}

// ToggleSort cycles a sortable column none→asc→desc→none. Activating a
// different column starts it at asc and clears the previous one. Calls
// against unknown or non-sortable columns are ignored.
func (v *View[T]) ToggleSort(key string) {
	col := v.column(key)
	if col == nil || !col.Sortable {
		return
	}
	if v.sortKey != key {
		v.sortKey = key
		v.sortDir = DirAsc
		return
	}
	switch v.sortDir {
	case DirAsc:
		v.sortDir = DirDesc
	case DirDesc:
		v.sortKey = ""
		v.sortDir = DirNone
	default:
		v.sortDir = DirAsc
	}
}

// Sort reports the active sort column and direction.
func (v *View[T]) Sort() (key string, dir Direction) {
	return v.sortKey, v.sortDir
}

// SetPageIndex clamps silently into [0, PageCount-1].
func (v *View[T]) SetPageIndex(i int) {
	v.pageIndex = i
	v.clampPage()
}

// SetPageSize coerces sizes below 1 to 1 and resets to the first page.
func (v *View[T]) SetPageSize(n int) {
	if n < 1 {
		n = 1
	}
	v.pageSize = n
	v.pageIndex = 0
}

// NextPage and PrevPage move one page, clamped.
func (v *View[T]) NextPage() { v.SetPageIndex(v.pageIndex + 1) }
func (v *View[T]) PrevPage() { v.SetPageIndex(v.pageIndex - 1) }

// ToggleColumn flips a column's visibility. Hidden columns stay fully
// functional for filtering and sorting; only rendering is suppressed.
func (v *View[T]) ToggleColumn(key string) {
	if v.column(key) == nil {
		return
	}
	v.hidden[key] = !v.hidden[key]
}

// Hidden reports whether a column is currently hidden.
func (v *View[T]) Hidden(key string) bool { return v.hidden[key] }

// Columns returns the visible descriptors in declaration order.
func (v *View[T]) Columns() []Column[T] {
	out := make([]Column[T], 0, len(v.columns))
	for _, c := range v.columns {
		if v.hidden[c.Key] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// AllColumns returns every descriptor, hidden ones included, for
// column-picker menus.
func (v *View[T]) AllColumns() []Column[T] { return v.columns }

// Rows returns the current page: filter, then stable sort, then slice.
// Calling it twice without a state change returns identical output.
func (v *View[T]) Rows() []T {
	idx := v.pageIndexes()
	out := make([]T, 0, len(idx))
	for _, i := range idx {
		out = append(out, v.rows[i])
	}
	return out
}

// Page returns pagination metadata consistent with Rows.
func (v *View[T]) Page() PageInfo {
	filtered := len(v.filteredIndexes())
	return PageInfo{
		PageIndex:    v.pageIndex,
		PageCount:    pageCount(filtered, v.pageSize),
		TotalRows:    len(v.rows),
		FilteredRows: filtered,
	}
}

// PageSize reports the current page size.
func (v *View[T]) PageSize() int { return v.pageSize }

// CellText renders one cell for display.
func CellText[T any](c Column[T], row T) string {
	if c.Render != nil {
		return c.Render(row)
	}
	return stringify(c.Accessor(row))
}

// ToggleSelectAt flips selection of the i-th row of the current page.
// Selection persists across page and filter changes.
func (v *View[T]) ToggleSelectAt(i int) {
	idx := v.pageIndexes()
	if i < 0 || i >= len(idx) {
		return
	}
	id := v.identity(idx[i])
	if v.selected[id] {
		delete(v.selected, id)
	} else {
		v.selected[id] = true
	}
}

// SelectedAt reports whether the i-th row of the current page is selected.
func (v *View[T]) SelectedAt(i int) bool {
	idx := v.pageIndexes()
	if i < 0 || i >= len(idx) {
		return false
	}
	return v.selected[v.identity(idx[i])]
}

// Selected returns all selected rows in source order, including rows not
// on the current page or excluded by the active filter.
func (v *View[T]) Selected() []T {
	var out []T
	for i := range v.rows {
		if v.selected[v.identity(i)] {
			out = append(out, v.rows[i])
		}
	}
	return out
}

// SelectedCount returns the number of selected identities.
func (v *View[T]) SelectedCount() int { return len(v.selected) }

// ClearSelection drops all selections.
func (v *View[T]) ClearSelection() {
	v.selected = make(map[string]bool)
}

// ---------------------------------------------------------------------------
// derivation pipeline
// ---------------------------------------------------------------------------

func (v *View[T]) column(key string) *Column[T] {
	for i := range v.columns {
		if v.columns[i].Key == key {
			return &v.columns[i]
		}
	}
	return nil
}

func (v *View[T]) identity(i int) string {
	if v.rowKey != nil {
		return v.rowKey(v.rows[i])
	}
	return strconv.Itoa(i)
}

func (v *View[T]) filteredIndexes() []int {
	col := v.column(v.filterKey)
	needle := strings.ToLower(v.filterNeedle)
	out := make([]int, 0, len(v.rows))
	for i := range v.rows {
		if col != nil && needle != "" {
			hay := strings.ToLower(stringify(col.Accessor(v.rows[i])))
			if !strings.Contains(hay, needle) {
				continue
			}
		}
		out = append(out, i)
	}
	return out
}

func (v *View[T]) sortedIndexes() []int {
	idx := v.filteredIndexes()
	col := v.column(v.sortKey)
	if col == nil || v.sortDir == DirNone {
		return idx
	}
	desc := v.sortDir == DirDesc
	stableSort(idx, func(a, b int) bool {
		return v.less(col, v.rows[a], v.rows[b], desc)
	})
	return idx
}

func (v *View[T]) less(col *Column[T], a, b T, desc bool) bool {
	if col.Compare != nil {
		c := col.Compare(a, b)
		if desc {
			return c > 0
		}
		return c < 0
	}
	va, vb := col.Accessor(a), col.Accessor(b)
	// Nils sort last regardless of direction so ties do not flip sides
	// between asc and desc.
	if va == nil || vb == nil {
		return vb == nil && va != nil
	}
	c := compareValues(va, vb)
	if desc {
		return c > 0
	}
	return c < 0
}

func (v *View[T]) pageIndexes() []int {
	idx := v.sortedIndexes()
	count := pageCount(len(idx), v.pageSize)
	page := v.pageIndex
	if page >= count {
		page = count - 1
	}
	if page < 0 {
		page = 0
	}
	start := page * v.pageSize
	if start >= len(idx) {
		return nil
	}
	end := start + v.pageSize
	if end > len(idx) {
		end = len(idx)
	}
	return idx[start:end]
}

func (v *View[T]) clampPage() {
	count := pageCount(len(v.filteredIndexes()), v.pageSize)
	if v.pageIndex >= count {
		v.pageIndex = count - 1
	}
	if v.pageIndex < 0 {
		v.pageIndex = 0
	}
}

func pageCount(filtered, pageSize int) int {
	if filtered <= 0 {
		return 1
	}
	return (filtered + pageSize - 1) / pageSize
}

// stableSort is insertion sort: stable, and cheap at the row counts a
// terminal table renders.
func stableSort(idx []int, less func(a, b int) bool) {
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && less(idx[j], idx[j-1]); j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
}

// ---------------------------------------------------------------------------
// value comparison and stringification
// ---------------------------------------------------------------------------

func stringify(val any) string {
	if val == nil {
		return ""
	}
	switch x := val.(type) {
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// orderable reports whether the default comparator has a defined order
// for the value's type.
func orderable(val any) bool {
	switch val.(type) {
	case nil, string, bool, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// compareValues defines a total order over mixed values: numbers compare
// numerically, strings by code point, times chronologically, bools
// false<true, and everything else by its formatted text.
func compareValues(a, b any) int {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case !ba && bb:
				return -1
			case ba && !bb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(stringify(a), stringify(b))
}

func toFloat(val any) (float64, bool) {
	switch x := val.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
