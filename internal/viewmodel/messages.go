package viewmodel

import (
	"github.com/nhle/accomplishment-tracker/internal/model"
)

// RedirectMsg asks the host to send the viewer to Path, usually because the
// session is gone.
type RedirectMsg struct {
	Path string
	Err  error
}

// CreatedMsg reports the outcome of a Create. Hosts pass it to Update and
// may also use it to reset or keep the input form.
type CreatedMsg struct {
	Record *model.Accomplishment
	Err    error

	ownerID string
}

type loadedMsg struct {
	seq     int
	ownerID string
	rows    []model.Accomplishment
	err     error
}

type subscribedMsg struct {
	feedID      int
	unsubscribe func()
	err         error
}

type changedMsg struct {
	feedID int
}

type feedLostMsg struct {
	feedID int
}

type resubscribeMsg struct {
	feedID int
}

type confirmExpiredMsg struct {
	id  string
	seq int
}

type deletedMsg struct {
	id      string
	ownerID string
	err     error
}

type noticeExpiredMsg struct {
	seq int
}
