package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar"

	"github.com/nnmtech/verisynthos/pkg/store"
)

// PushChannel is a registered remote push-notification subscription
// (e.g. a Drive-style watch channel), grounded on
// agents.memory.main.enterprise.py's watch_channels dict and its
// renew_watch_channels background task: renew once within 50% of the
// remaining TTL, not a fixed lead time, so an arbitrarily long or short
// TTL both get proportional headroom.
type PushChannel struct {
	ID          string
	FolderID    string
	WebhookAddr string
	ExpiresAt   time.Time
	IssuedAt    time.Time
}

// remainingFraction reports the fraction of the channel's total TTL
// still remaining, for the renew-at-50%-remaining rule.
func (c PushChannel) remainingFraction(now time.Time) float64 {
	total := c.ExpiresAt.Sub(c.IssuedAt)
	if total <= 0 {
		return 0
	}
	remaining := c.ExpiresAt.Sub(now)
	return float64(remaining) / float64(total)
}

// ChannelRenewer opens a new channel for a folder, returning the
// replacement. Implemented by the folder provider (e.g. Drive); this
// package only owns the renewal schedule.
type ChannelRenewer func(ctx context.Context, folderID string) (PushChannel, error)

// PushWatcher tracks registered PushChannels and renews them in the
// background when within 50% of their remaining TTL, then re-enumerates
// the watched folder on notification.
type PushWatcher struct {
	mu       sync.Mutex
	channels map[string]PushChannel

	renew    ChannelRenewer
	onNotify func(ctx context.Context, folderID string)

	stopCh chan struct{}
}

// NewPushWatcher returns a PushWatcher. onNotify is invoked (typically
// re-running Enumerate+IngestFile over the folder) whenever a webhook
// delivers a notification for a registered channel.
func NewPushWatcher(renew ChannelRenewer, onNotify func(ctx context.Context, folderID string)) *PushWatcher {
	return &PushWatcher{
		channels: make(map[string]PushChannel),
		renew:    renew,
		onNotify: onNotify,
		stopCh:   make(chan struct{}),
	}
}

// Register adds a channel to the renewal schedule.
func (w *PushWatcher) Register(ch PushChannel) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.channels[ch.ID] = ch
}

// Unregister removes a channel.
func (w *PushWatcher) Unregister(channelID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.channels, channelID)
}

// Notify looks up channelID and, if registered, re-enumerates its
// folder. Called from the webhook HTTP handler.
func (w *PushWatcher) Notify(ctx context.Context, channelID string) {
	w.mu.Lock()
	ch, ok := w.channels[channelID]
	w.mu.Unlock()
	if !ok {
		slog.Warn("push notification for unregistered channel", "channel_id", channelID)
		return
	}
	w.onNotify(ctx, ch.FolderID)
}

// RunRenewal polls for channels within 50% of their remaining TTL and
// renews them, following the teacher's ticker+select supervised-loop
// shape.
func (w *PushWatcher) RunRenewal(ctx context.Context, checkInterval time.Duration) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.renewExpiring(ctx)
		}
	}
}

// Stop ends RunRenewal.
func (w *PushWatcher) Stop() { close(w.stopCh) }

func (w *PushWatcher) renewExpiring(ctx context.Context) {
	now := time.Now()
	w.mu.Lock()
	due := make([]PushChannel, 0)
	for _, ch := range w.channels {
		if ch.remainingFraction(now) <= 0.5 {
			due = append(due, ch)
		}
	}
	w.mu.Unlock()

	for _, ch := range due {
		fresh, err := w.renew(ctx, ch.FolderID)
		if err != nil {
			slog.Error("failed to renew push channel", "channel_id", ch.ID, "folder_id", ch.FolderID, "error", err)
			continue
		}
		w.mu.Lock()
		delete(w.channels, ch.ID)
		w.channels[fresh.ID] = fresh
		w.mu.Unlock()
		slog.Info("renewed push channel", "old_channel_id", ch.ID, "new_channel_id", fresh.ID, "folder_id", ch.FolderID)
	}
}

// MailMessage is one message matched by a mail poller's search query.
type MailMessage struct {
	MessageID string
	Subject   string
	Sender    string
	Date      time.Time
	Attachments []MailAttachment
}

// MailAttachment is one file attached to a MailMessage.
type MailAttachment struct {
	Entry Entry
	Data  []byte
}

// MailSource lists matching messages and fetches their attachments,
// grounded on agents.memory.connectors.py's process_email_attachments
// loop (subject/sender/date/message-id provenance per attachment).
type MailSource interface {
	SourceTag() store.Source
	Search(ctx context.Context, query string) ([]MailMessage, error)
}

// MailPoller runs the mail-inbox poller watcher: list messages matching
// query, then run the per-file pipeline over each attachment with
// email-header provenance.
type MailPoller struct {
	Pipeline *Pipeline
	Mail     MailSource
	Query    string
}

// PollOnce lists and ingests every attachment from messages currently
// matching the configured query.
func (p *MailPoller) PollOnce(ctx context.Context) ([]Outcome, error) {
	messages, err := p.Mail.Search(ctx, p.Query)
	if err != nil {
		return nil, err
	}

	var outcomes []Outcome
	for _, msg := range messages {
		prov := store.Provenance{
			EmailSubject: msg.Subject,
			EmailSender:  msg.Sender,
			EmailDate:    msg.Date.Format(time.RFC3339),
			MessageID:    msg.MessageID,
		}
		for _, att := range msg.Attachments {
			outcome, err := p.Pipeline.IngestFile(ctx, mailAttachmentSource{tag: p.Mail.SourceTag(), data: att.Data}, att.Entry, prov)
			if err != nil {
				slog.Error("mail attachment ingestion failed", "message_id", msg.MessageID, "attachment", att.Entry.Name, "error", err)
				continue
			}
			outcomes = append(outcomes, outcome)
		}
	}
	return outcomes, nil
}

// mailAttachmentSource adapts an already-fetched attachment body into
// the Source.Download shape IngestFile expects, since mail attachments
// arrive with the message rather than needing a second fetch.
type mailAttachmentSource struct {
	tag  store.Source
	data []byte
}

func (s mailAttachmentSource) SourceTag() store.Source { return s.tag }
func (s mailAttachmentSource) ListChildren(ctx context.Context, folderID string) ([]Entry, error) {
	return nil, nil
}
func (s mailAttachmentSource) Download(ctx context.Context, entry Entry) ([]byte, error) {
	return s.data, nil
}

// FilesystemPoller scans a glob pattern on an interval and re-ingests
// any file whose mtime advanced since the last scan, grounded on
// agents.memory.connectors.py's poll_file_share (path→lastMtime
// tracking, sleep(poll_interval) loop).
type FilesystemPoller struct {
	Pipeline *Pipeline
	Source   Source
	Pattern  string
	Interval time.Duration

	mu        sync.Mutex
	lastMtime map[string]time.Time
	stopCh    chan struct{}
}

// NewFilesystemPoller returns a poller over pattern, scanning every
// interval once started.
func NewFilesystemPoller(pipeline *Pipeline, src Source, pattern string, interval time.Duration) *FilesystemPoller {
	return &FilesystemPoller{
		Pipeline:  pipeline,
		Source:    src,
		Pattern:   pattern,
		Interval:  interval,
		lastMtime: make(map[string]time.Time),
		stopCh:    make(chan struct{}),
	}
}

// Run scans on Interval until ctx is done or Stop is called.
func (f *FilesystemPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(f.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		case <-ticker.C:
			if err := f.scanOnce(ctx); err != nil {
				slog.Error("filesystem poll failed", "pattern", f.Pattern, "error", err)
			}
		}
	}
}

// Stop ends Run.
func (f *FilesystemPoller) Stop() { close(f.stopCh) }

func (f *FilesystemPoller) scanOnce(ctx context.Context) error {
	matches, err := doublestar.Glob(f.Pattern)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		last, seen := f.lastMtime[path]
		if seen && !info.ModTime().After(last) {
			continue
		}
		f.lastMtime[path] = info.ModTime()

		entry := Entry{
			ID:         path,
			Name:       filepath.Base(path),
			MediaType:  mediaTypeFromExt(path),
			ModifiedAt: info.ModTime(),
		}
		if _, err := f.Pipeline.IngestFile(ctx, f.Source, entry, store.Provenance{}); err != nil {
			slog.Error("filesystem poll ingestion failed", "path", path, "error", err)
		}
	}
	return nil
}

func mediaTypeFromExt(path string) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			return mt[:i]
		}
		return mt
	}
	return "application/octet-stream"
}

// watcherID derives a stable id for a watch target, mirroring
// poll_file_share's md5(share_path) watcher_id.
func watcherID(path string) string {
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// FilesystemWatcherInfo summarizes one registered watcher for the
// GET /watch/fileshare listing API.
type FilesystemWatcherInfo struct {
	WatcherID string
	Pattern   string
	Interval  time.Duration
}

// FilesystemWatcherRegistry tracks active FilesystemPollers by a stable
// id derived from their watch path, mirroring
// agents.memory.connectors.py's file_share_watchers dict plus its
// start/stop/list operations (POST /watch/fileshare, DELETE
// /watch/fileshare/{id}, GET /watch/fileshare).
type FilesystemWatcherRegistry struct {
	mu       sync.Mutex
	watchers map[string]*registeredWatcher
	pipeline *Pipeline
	source   Source
}

type registeredWatcher struct {
	poller *FilesystemPoller
	info   FilesystemWatcherInfo
	cancel context.CancelFunc
}

// NewFilesystemWatcherRegistry returns an empty registry bound to
// pipeline and src.
func NewFilesystemWatcherRegistry(pipeline *Pipeline, src Source) *FilesystemWatcherRegistry {
	return &FilesystemWatcherRegistry{
		watchers: make(map[string]*registeredWatcher),
		pipeline: pipeline,
		source:   src,
	}
}

// Start registers a watcher over pattern, polling every interval, and
// returns its watcher id. Re-starting an already-watched pattern is a
// no-op that returns the existing id, matching poll_file_share's
// "already_watching" short-circuit.
func (r *FilesystemWatcherRegistry) Start(ctx context.Context, pattern string, interval time.Duration) string {
	id := watcherID(pattern)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.watchers[id]; exists {
		return id
	}

	poller := NewFilesystemPoller(r.pipeline, r.source, pattern, interval)
	watchCtx, cancel := context.WithCancel(ctx)
	r.watchers[id] = &registeredWatcher{
		poller: poller,
		info:   FilesystemWatcherInfo{WatcherID: id, Pattern: pattern, Interval: interval},
		cancel: cancel,
	}
	go poller.Run(watchCtx)
	return id
}

// Stop cancels and removes a registered watcher. Returns false if id was
// not registered.
func (r *FilesystemWatcherRegistry) Stop(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.watchers[id]
	if !ok {
		return false
	}
	w.cancel()
	w.poller.Stop()
	delete(r.watchers, id)
	return true
}

// List returns every active watcher's info.
func (r *FilesystemWatcherRegistry) List() []FilesystemWatcherInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]FilesystemWatcherInfo, 0, len(r.watchers))
	for _, w := range r.watchers {
		infos = append(infos, w.info)
	}
	return infos
}
