package viewmodel

import (
	"strings"

	"github.com/nhle/accomplishment-tracker/internal/model"
)

// Matches reports whether rec matches query: a case-insensitive substring
// of the title, the description, the rendered date (M/D/YYYY) or the
// stored date (YYYY-MM-DD). The empty query matches everything.
func Matches(rec model.Accomplishment, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, field := range []string{rec.Title, rec.Description, rec.LocaleDate(), rec.Date} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Filter returns the records matching query in their original order.
func Filter(records []model.Accomplishment, query string) []model.Accomplishment {
	if query == "" {
		return records
	}
	out := make([]model.Accomplishment, 0, len(records))
	for _, r := range records {
		if Matches(r, query) {
			out = append(out, r)
		}
	}
	return out
}

// TotalPages returns the number of pages needed for n items, never less
// than one.
func TotalPages(n, pageSize int) int {
	if pageSize <= 0 || n <= 0 {
		return 1
	}
	return (n + pageSize - 1) / pageSize
}

// Paginate returns the 1-based page of items. Out-of-range pages are
// clamped.
func Paginate(items []model.Accomplishment, page, pageSize int) []model.Accomplishment {
	if pageSize <= 0 {
		return items
	}
	page = clamp(page, 1, TotalPages(len(items), pageSize))
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := min(start+pageSize, len(items))
	return items[start:end]
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Search sets the query and returns to the first page.
func (vm *ViewModel) Search(query string) {
	vm.query = query
	vm.refilter(true)
}

// refilter recomputes the filtered set. The page is reset to 1 when
// resetPage is set and otherwise clamped into range.
func (vm *ViewModel) refilter(resetPage bool) {
	vm.filtered = Filter(vm.records, vm.query)
	if resetPage {
		vm.page = 1
		return
	}
	vm.page = clamp(vm.page, 1, vm.TotalPages())
}

// PageSize returns the number of records per page.
func (vm *ViewModel) PageSize() int { return vm.opts.PageSize }

// CurrentPage returns the 1-based current page.
func (vm *ViewModel) CurrentPage() int { return vm.page }

// TotalPages returns the number of pages of filtered records.
func (vm *ViewModel) TotalPages() int {
	return TotalPages(len(vm.filtered), vm.opts.PageSize)
}

// Page returns the filtered records on the current page.
func (vm *ViewModel) Page() []model.Accomplishment {
	return Paginate(vm.filtered, vm.page, vm.opts.PageSize)
}

// SetPage moves to page n, clamped into range.
func (vm *ViewModel) SetPage(n int) {
	vm.page = clamp(n, 1, vm.TotalPages())
}

// NextPage moves forward one page if there is one.
func (vm *ViewModel) NextPage() { vm.SetPage(vm.page + 1) }

// PrevPage moves back one page if there is one.
func (vm *ViewModel) PrevPage() { vm.SetPage(vm.page - 1) }
