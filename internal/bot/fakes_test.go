package bot

import (
	"context"
	"errors"
	"sync"

	"clipbot/internal/broadcast"
	"clipbot/internal/fetch"
	"clipbot/internal/transport"
)

type sentText struct {
	ChatID int64
	Text   string
}

type fakeMessenger struct {
	mu       sync.Mutex
	texts    []sentText
	videos   []string
	docs     []string
	deleted  []transport.MessageRef
	answered []string

	nextMsgID int
	videoErr  error
	docErr    error
	member    bool
	memberErr error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{member: true}
}

func (f *fakeMessenger) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sentText{ChatID: to.ChatID, Text: text})
	f.nextMsgID++
	return transport.MessageRef{ChatID: to.ChatID, MessageID: f.nextMsgID}, nil
}

func (f *fakeMessenger) SendVideo(ctx context.Context, to transport.ChatTarget, path, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos = append(f.videos, path)
	return f.videoErr
}

func (f *fakeMessenger) SendDocument(ctx context.Context, to transport.ChatTarget, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, path)
	return f.docErr
}

func (f *fakeMessenger) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	return nil
}

func (f *fakeMessenger) DeleteMessage(ctx context.Context, ref transport.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeMessenger) AnswerCallback(ctx context.Context, callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, callbackID)
	return nil
}

func (f *fakeMessenger) RegisterWebhook(ctx context.Context, url string) error { return nil }

func (f *fakeMessenger) IsMember(ctx context.Context, userID int64) (bool, error) {
	return f.member, f.memberErr
}

func (f *fakeMessenger) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1].Text
}

func (f *fakeMessenger) textCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type fakeStore struct {
	mu        sync.Mutex
	users     map[int64]string
	banned    map[int64]bool
	downloads int64

	banErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[int64]string{}, banned: map[int64]bool{}}
}

func (s *fakeStore) UpsertUser(ctx context.Context, id int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		s.users[id] = username
	}
	return nil
}

func (s *fakeStore) IsBanned(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banned[id], nil
}

func (s *fakeStore) SetBanned(ctx context.Context, id int64, banned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.banErr != nil {
		return s.banErr
	}
	s.banned[id] = banned
	return nil
}

func (s *fakeStore) UserCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

func (s *fakeStore) DownloadCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads, nil
}

func (s *fakeStore) ListActiveUserIDs(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id := range s.users {
		if !s.banned[id] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *fakeStore) IncrementDownloads(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads++
	return nil
}

// fakeFetcher runs the done callback synchronously when a result is scripted.
type fakeFetcher struct {
	mu       sync.Mutex
	urls     []string
	artifact *fetch.Artifact
	err      error
	busy     bool
}

func (f *fakeFetcher) Submit(url string, done func(*fetch.Artifact, error)) error {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return fetch.ErrBusy
	}
	f.urls = append(f.urls, url)
	a, err := f.artifact, f.err
	f.mu.Unlock()
	if a != nil || err != nil {
		done(a, err)
	}
	return nil
}

func (f *fakeFetcher) submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

type fakeBroadcaster struct {
	mu      sync.Mutex
	texts   []string
	lastIDs []int64
	summary broadcast.Summary
}

func (b *fakeBroadcaster) Send(ctx context.Context, text string, recipients []int64) broadcast.Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.texts = append(b.texts, text)
	b.lastIDs = append([]int64(nil), recipients...)
	return b.summary
}

// fakeDecoder maps fixed bodies to events for webhook handler tests.
type fakeDecoder struct {
	ev  transport.Event
	err error
}

func (d *fakeDecoder) Decode(body []byte) (transport.Event, error) {
	if d.err != nil {
		return transport.Event{}, d.err
	}
	return d.ev, nil
}

var errDecode = errors.New("bad payload")
