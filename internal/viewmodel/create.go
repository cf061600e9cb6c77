package viewmodel

import (
	"context"
	"slices"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/analytics"
	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

// Input field names used in ValidationError.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldDate        = "date"
)

// Input is what the viewer typed into the add form.
type Input struct {
	Title       string
	Description string
	Date        string
}

// ValidationError maps input fields to problems with them.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid accomplishment: " + strings.Join(parts, "; ")
}

// ValidateTitle checks the title field.
func ValidateTitle(s string) error {
	if strings.TrimSpace(s) == "" {
		return fieldError("title is required")
	}
	return nil
}

// ValidateDescription checks the description field.
func ValidateDescription(s string) error {
	if strings.TrimSpace(s) == "" {
		return fieldError("description is required")
	}
	return nil
}

// ValidateDate checks the date field.
func ValidateDate(s string) error {
	if strings.TrimSpace(s) == "" {
		return fieldError("date is required")
	}
	if _, err := model.ParseDate(s); err != nil {
		return fieldError("date must be YYYY-MM-DD")
	}
	return nil
}

type fieldError string

func (e fieldError) Error() string { return string(e) }

// Validate checks every field of in. It returns nil or a *ValidationError.
func Validate(in Input) error {
	fields := map[string]string{}
	checks := []struct {
		name  string
		value string
		check func(string) error
	}{
		{FieldTitle, in.Title, ValidateTitle},
		{FieldDescription, in.Description, ValidateDescription},
		{FieldDate, in.Date, ValidateDate},
	}
	for _, c := range checks {
		if err := c.check(c.value); err != nil {
			fields[c.name] = err.Error()
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Create validates in and, when it is valid, returns the command that
// inserts it for viewer. Invalid input is reported synchronously and no
// call is made. The outcome arrives as a CreatedMsg.
func (vm *ViewModel) Create(viewer model.Viewer, in Input) (tea.Cmd, error) {
	if vm.disposed {
		return nil, nil
	}
	if viewer.IsZero() {
		return redirect(gateway.ErrUnauthenticated), nil
	}
	if err := Validate(in); err != nil {
		return nil, err
	}

	payload := model.NewAccomplishment{
		UserID:      viewer.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Date:        strings.TrimSpace(in.Date),
	}
	gw := vm.gw
	timeout := vm.opts.CallTimeout

	insert := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		rec, err := gw.Insert(ctx, payload)
		return CreatedMsg{Record: rec, Err: err, ownerID: viewer.ID}
	}
	return tea.Batch(vm.setNotice(NoticeInfo, "Adding accomplishment..."), insert), nil
}

func (vm *ViewModel) applyCreated(msg CreatedMsg) tea.Cmd {
	if vm.disposed || msg.ownerID != vm.viewer.ID {
		return nil
	}

	if msg.Err != nil {
		if gateway.IsAuthError(msg.Err) {
			return redirect(msg.Err)
		}
		vm.log.Warn("adding accomplishment failed", zap.Error(msg.Err))
		return vm.setNotice(NoticeError, "Failed to add accomplishment")
	}

	rec := msg.Record
	if rec == nil || rec.UserID != vm.viewer.ID {
		return nil
	}
	vm.setRecords(mergeRecord(vm.records, *rec))
	vm.opts.Tracker.Track(analytics.ActionCreate, rec.Title)
	return vm.setNotice(NoticeSuccess, "Accomplishment added successfully!")
}

// mergeRecord returns records with rec placed after every record dated on
// or after it, the position a fresh fetch would give it. A record already
// present (for example delivered by a refetch) is replaced in place.
func mergeRecord(records []model.Accomplishment, rec model.Accomplishment) []model.Accomplishment {
	if i := slices.IndexFunc(records, func(r model.Accomplishment) bool { return r.ID == rec.ID }); i >= 0 {
		out := slices.Clone(records)
		out[i] = rec
		return out
	}
	pos := sort.Search(len(records), func(i int) bool { return records[i].Date < rec.Date })
	out := make([]model.Accomplishment, 0, len(records)+1)
	out = append(out, records[:pos]...)
	out = append(out, rec)
	return append(out, records[pos:]...)
}
