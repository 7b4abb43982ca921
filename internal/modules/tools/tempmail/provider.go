package tempmail

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mx-space/folio/internal/pkg/apperr"
	"github.com/mx-space/folio/internal/pkg/upstream"
	"github.com/tidwall/gjson"
)

// Mailbox is a provider account.
type Mailbox struct {
	ID       string
	Address  string
	Password string
	Token    string
}

// Message is the inbox listing entry for one mail.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	FromName  string    `json:"fromName,omitempty"`
	Subject   string    `json:"subject"`
	Intro     string    `json:"intro"`
	Seen      bool      `json:"seen"`
	CreatedAt time.Time `json:"createdAt"`
}

// MailTM talks to a mail.tm compatible HTTP API.
type MailTM struct {
	client  *upstream.Client
	baseURL string
}

func NewMailTM(client *upstream.Client, baseURL string) *MailTM {
	return &MailTM{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// CreateMailbox registers a random address on the first active domain and
// logs into it.
func (m *MailTM) CreateMailbox(ctx context.Context) (Mailbox, error) {
	domain, err := m.domain(ctx)
	if err != nil {
		return Mailbox{}, err
	}
	local, err := randomHex(5)
	if err != nil {
		return Mailbox{}, err
	}
	password, err := randomHex(12)
	if err != nil {
		return Mailbox{}, err
	}
	creds := map[string]string{"address": local + "@" + domain, "password": password}

	resp, err := m.client.JSON(ctx, http.MethodPost, m.baseURL+"/accounts", creds, nil)
	if err != nil {
		return Mailbox{}, err
	}
	mb := Mailbox{
		ID:       gjson.GetBytes(resp.Body, "id").String(),
		Address:  gjson.GetBytes(resp.Body, "address").String(),
		Password: password,
	}
	if mb.Address == "" {
		mb.Address = creds["address"]
	}

	resp, err = m.client.JSON(ctx, http.MethodPost, m.baseURL+"/token", creds, nil)
	if err != nil {
		return Mailbox{}, err
	}
	mb.Token = gjson.GetBytes(resp.Body, "token").String()
	if mb.Token == "" {
		return Mailbox{}, apperr.Upstream(nil, "temp mail provider returned no token")
	}
	if mb.ID == "" {
		mb.ID = gjson.GetBytes(resp.Body, "id").String()
	}
	return mb, nil
}

// Messages lists the inbox of the mailbox that owns token.
func (m *MailTM) Messages(ctx context.Context, token string) ([]Message, error) {
	resp, err := m.client.JSON(ctx, http.MethodGet, m.baseURL+"/messages?page=1", nil, bearer(token))
	if err != nil {
		return nil, err
	}
	list := members(resp.Body)
	out := make([]Message, 0, len(list))
	for _, it := range list {
		created, _ := time.Parse(time.RFC3339, it.Get("createdAt").String())
		out = append(out, Message{
			ID:        it.Get("id").String(),
			From:      it.Get("from.address").String(),
			FromName:  it.Get("from.name").String(),
			Subject:   it.Get("subject").String(),
			Intro:     it.Get("intro").String(),
			Seen:      it.Get("seen").Bool(),
			CreatedAt: created,
		})
	}
	return out, nil
}

// DeleteMailbox removes the provider account. A missing account is not an
// error.
func (m *MailTM) DeleteMailbox(ctx context.Context, mb Mailbox) error {
	if mb.ID == "" {
		return nil
	}
	resp, err := m.client.JSON(ctx, http.MethodDelete, m.baseURL+"/accounts/"+url.PathEscape(mb.ID), nil, bearer(mb.Token))
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

func (m *MailTM) domain(ctx context.Context) (string, error) {
	resp, err := m.client.JSON(ctx, http.MethodGet, m.baseURL+"/domains", nil, nil)
	if err != nil {
		return "", err
	}
	for _, d := range members(resp.Body) {
		if d.Get("isActive").Exists() && !d.Get("isActive").Bool() {
			continue
		}
		if name := d.Get("domain").String(); name != "" {
			return name, nil
		}
	}
	return "", apperr.Upstream(nil, "temp mail provider has no active domain")
}

// members accepts both the plain JSON array and the JSON-LD collection form.
func members(body []byte) []gjson.Result {
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		return root.Array()
	}
	return root.Get("hydra:member").Array()
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
