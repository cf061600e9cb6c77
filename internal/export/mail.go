package export

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/accomplishment-tracker/internal/model"
)

// Message describes the envelope of a mailed export.
type Message struct {
	From    string
	To      string
	Subject string
	Now     time.Time
}

// WriteMessage writes an RFC 5322 message to w with a short text body and
// the CSV export attached.
func WriteMessage(w io.Writer, m Message, records []model.Accomplishment) error {
	from, err := mail.ParseAddress(m.From)
	if err != nil {
		return fmt.Errorf("parsing from address %q: %w", m.From, err)
	}
	to, err := mail.ParseAddress(m.To)
	if err != nil {
		return fmt.Errorf("parsing to address %q: %w", m.To, err)
	}
	now := m.Now
	if now.IsZero() {
		now = time.Now()
	}
	subject := m.Subject
	if subject == "" {
		subject = "Accomplishments export " + now.Format(model.DateLayout)
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(subject)

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("creating message writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("creating inline part: %w", err)
	}
	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	pw, err := tw.CreatePart(th)
	if err != nil {
		return fmt.Errorf("creating text part: %w", err)
	}
	if _, err := fmt.Fprintf(pw, "%d accomplishments exported on %s.\n", len(records), now.Format(model.LocaleDateLayout)); err != nil {
		return fmt.Errorf("writing text part: %w", err)
	}
	pw.Close()
	tw.Close()

	var ah mail.AttachmentHeader
	ah.SetContentType("text/csv", map[string]string{"charset": "utf-8"})
	ah.SetFilename(Filename(now))
	aw, err := mw.CreateAttachment(ah)
	if err != nil {
		return fmt.Errorf("creating attachment: %w", err)
	}
	if err := WriteCSVIn(aw, records, now.Location()); err != nil {
		return err
	}
	if err := aw.Close(); err != nil {
		return fmt.Errorf("closing attachment: %w", err)
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("closing message: %w", err)
	}
	return nil
}
