package mailbox

import (
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"smartrab/internal/config"
	"smartrab/internal/pipeline"
)

// IMAPSource reads unseen messages that carry price-list attachments from one
// IMAP folder. Everything else stays unseen for the humans reading the box.
type IMAPSource struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
	markSeen bool
}

func NewIMAPSource(cfg config.Config) (*IMAPSource, error) {
	for _, req := range []struct{ name, value string }{
		{"IMAP_HOST", cfg.IMAPHost},
		{"IMAP_USER", cfg.IMAPUser},
		{"IMAP_PASSWORD", cfg.IMAPPassword},
	} {
		if err := cfg.Require(req.name, req.value); err != nil {
			return nil, err
		}
	}

	return &IMAPSource{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		secure:   cfg.IMAPSecure,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		markSeen: cfg.IMAPMarkSeen,
	}, nil
}

func (c *IMAPSource) open(label string) (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	var client *imapclient.Client
	var err error
	if c.secure {
		client, err = imapclient.DialTLS(addr, &tls.Config{ServerName: c.host})
	} else {
		client, err = imapclient.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if err := client.Login(c.user, c.password); err != nil {
		_ = client.Logout()
		return nil, fmt.Errorf("login: %w", err)
	}
	if _, err := client.Select(label, false); err != nil {
		_ = client.Logout()
		return nil, fmt.Errorf("select %s: %w", label, err)
	}
	return client, nil
}

// FetchInbox looks at the newest max unseen messages in label and downloads
// the ones with at least one attachment the pipeline can read.
func (c *IMAPSource) FetchInbox(label string, max int) ([]Message, error) {
	client, err := c.open(label)
	if err != nil {
		return nil, err
	}
	defer client.Logout()

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}
	if max > 0 && len(uids) > max {
		uids = uids[len(uids)-max:]
	}
	if len(uids) == 0 {
		return nil, nil
	}

	wanted, err := priceMailUIDs(client, uids)
	if err != nil {
		return nil, err
	}
	if wanted.Empty() {
		return nil, nil
	}

	out, err := fetchRaw(client, wanted)
	if err != nil {
		return nil, err
	}

	if c.markSeen {
		flags := []interface{}{imap.SeenFlag}
		if err := client.UidStore(wanted, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
			return nil, fmt.Errorf("mark seen: %w", err)
		}
	}
	return out, nil
}

// priceMailUIDs fetches only body structures and keeps the messages worth
// downloading.
func priceMailUIDs(client *imapclient.Client, uids []uint32) (*imap.SeqSet, error) {
	set := new(imap.SeqSet)
	set.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- client.UidFetch(set, []imap.FetchItem{imap.FetchUid, imap.FetchBodyStructure}, messages)
	}()

	wanted := new(imap.SeqSet)
	for msg := range messages {
		if msg != nil && hasPriceAttachment(msg.BodyStructure) {
			wanted.AddNum(msg.Uid)
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch structure: %w", err)
	}
	return wanted, nil
}

func fetchRaw(client *imapclient.Client, uids *imap.SeqSet) ([]Message, error) {
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}
	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() { done <- client.UidFetch(uids, items, messages) }()

	var out []Message
	var readErr error
	for msg := range messages {
		if msg == nil || readErr != nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			readErr = fmt.Errorf("read message %d: %w", msg.Uid, err)
			continue
		}
		out = append(out, toMessage(msg, raw))
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch bodies: %w", err)
	}
	if readErr != nil {
		return nil, readErr
	}
	return out, nil
}

// hasPriceAttachment reports whether any named part of the message is a file
// the pipeline knows how to load.
func hasPriceAttachment(bs *imap.BodyStructure) bool {
	if bs == nil {
		return false
	}
	found := false
	bs.Walk(func(_ []int, part *imap.BodyStructure) bool {
		if found {
			return false
		}
		if name, err := part.Filename(); err == nil && name != "" && pipeline.SupportedExtension(name) {
			found = true
		}
		return true
	})
	return found
}

func toMessage(msg *imap.Message, raw []byte) Message {
	out := Message{Raw: raw, ReceivedAt: time.Now().UTC().Format(time.RFC3339)}
	if msg.Envelope != nil {
		out.MessageID = msg.Envelope.MessageId
		out.Subject = msg.Envelope.Subject
		out.From = formatAddresses(msg.Envelope.From)
	}
	if out.MessageID == "" {
		out.MessageID = fmt.Sprintf("imap-%d", msg.Uid)
	}
	if !msg.InternalDate.IsZero() {
		out.ReceivedAt = msg.InternalDate.UTC().Format(time.RFC3339)
	}
	return out
}

func formatAddresses(addrs []*imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		if a.PersonalName != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.PersonalName, a.Address()))
		} else {
			parts = append(parts, a.Address())
		}
	}
	return strings.Join(parts, ", ")
}
