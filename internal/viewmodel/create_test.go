package viewmodel

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/accomplishment-tracker/internal/analytics"
	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
)

func createdMsgs(msgs []tea.Msg) []CreatedMsg {
	var out []CreatedMsg
	for _, m := range msgs {
		if c, ok := m.(CreatedMsg); ok {
			out = append(out, c)
		}
	}
	return out
}

func TestCreateRejectsInvalidInputBeforeAnyCall(t *testing.T) {
	fake := seedFake()
	vm, _ := newTestVM(t, fake)

	cmd, err := vm.Create(alice, Input{Title: "  ", Description: "", Date: "03/01/2024"})
	assert.Nil(t, cmd)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, map[string]string{
		FieldTitle:       "title is required",
		FieldDescription: "description is required",
		FieldDate:        "date must be YYYY-MM-DD",
	}, vErr.Fields)

	_, inserts, _ := fake.Calls()
	assert.Zero(t, inserts)
}

func TestValidateAcceptsCompleteInput(t *testing.T) {
	assert.NoError(t, Validate(Input{Title: "T", Description: "D", Date: "2024-02-29"}))

	err := Validate(Input{Title: "T", Description: "D"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, map[string]string{FieldDate: "date is required"}, vErr.Fields)
	assert.Equal(t, "invalid accomplishment: date: date is required", err.Error())
}

func TestCreateMergesInsertedRecordAtItsDatePosition(t *testing.T) {
	fake := seedFake()
	vm, tr := newTestVM(t, fake)
	run(t, vm, vm.Load(alice))
	list, _, _ := fake.Calls()

	cmd, err := vm.Create(alice, Input{Title: " Wrote RFC ", Description: "Storage redesign", Date: "2024-02-14"})
	require.NoError(t, err)
	assert.Equal(t, NoticeInfo, vm.Notification().Kind)

	created := createdMsgs(run(t, vm, cmd))
	require.Len(t, created, 1)
	require.NoError(t, created[0].Err)
	newID := created[0].Record.ID

	assert.Equal(t, []string{"a", "b", newID, "c"}, ids(vm.Records()))
	assert.Equal(t, "Wrote RFC", vm.Records()[2].Title)
	assert.Equal(t, Notice{Kind: NoticeSuccess, Text: "Accomplishment added successfully!"}, vm.Notification())
	assert.Equal(t, []analytics.Event{{Action: analytics.ActionCreate, Category: analytics.Category, Label: "Wrote RFC"}}, tr.Events())

	listAfter, inserts, _ := fake.Calls()
	assert.Equal(t, 1, inserts)
	assert.Equal(t, list, listAfter, "create does not refetch")
}

func TestCreateFailureKeepsRecordsAndReportsError(t *testing.T) {
	fake := seedFake()
	fake.SetError(&fake.InsertErr, &gateway.TransportError{Op: "insert", Err: errors.New("offline")})
	vm, tr := newTestVM(t, fake)
	run(t, vm, vm.Load(alice))

	cmd, err := vm.Create(alice, Input{Title: "T", Description: "D", Date: "2024-05-01"})
	require.NoError(t, err)

	created := createdMsgs(run(t, vm, cmd))
	require.Len(t, created, 1)
	assert.Error(t, created[0].Err, "the form sees the failure and keeps its input")

	assert.Len(t, vm.Records(), 3)
	assert.Equal(t, Notice{Kind: NoticeError, Text: "Failed to add accomplishment"}, vm.Notification())
	assert.Empty(t, tr.Events())
}

func TestCreateWithoutViewerRedirects(t *testing.T) {
	fake := seedFake()
	vm, _ := newTestVM(t, fake)

	cmd, err := vm.Create(model.Viewer{}, Input{Title: "T", Description: "D", Date: "2024-05-01"})
	require.NoError(t, err)
	assert.Len(t, redirects(run(t, vm, cmd)), 1)

	_, inserts, _ := fake.Calls()
	assert.Zero(t, inserts)
}

func TestMergeRecordReplacesExistingID(t *testing.T) {
	records := []model.Accomplishment{
		rec("a", "alice", "A", "2024-03-01"),
		rec("b", "alice", "B", "2024-02-01"),
	}
	updated := rec("b", "alice", "B2", "2024-02-01")

	got := mergeRecord(records, updated)
	assert.Equal(t, []string{"a", "b"}, ids(got))
	assert.Equal(t, "B2", got[1].Title)
	assert.Equal(t, "B", records[1].Title, "input is not modified")

	got = mergeRecord(records, rec("n", "alice", "N", "2025-01-01"))
	assert.Equal(t, []string{"n", "a", "b"}, ids(got))
	got = mergeRecord(records, rec("o", "alice", "O", "2020-01-01"))
	assert.Equal(t, []string{"a", "b", "o"}, ids(got))
}
