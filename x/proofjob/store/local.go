package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/philippgille/gokv"
	"github.com/philippgille/gokv/badgerdb"
	"github.com/philippgille/gokv/encoding"
	"github.com/philippgille/gokv/file"
	"github.com/philippgille/gokv/syncmap"
	"github.com/rs/zerolog"

	"github.com/sib-network/prover-service/x/proofjob"
)

type localOptions struct {
	Dir               string `json:"dir"`
	FilenameExtension string `json:"file_name_extension"`
	Codec             string `json:"codec"`
}

// Local stores job records in an embedded gokv backend (syncmap, file or
// badgerdb). gokv has no TTL and no key iteration, so retention is enforced
// by an in-process janitor over write timestamps; exact cross-restart
// retention is a Redis-backend property.
type Local struct {
	kv        gokv.Store
	retention time.Duration
	log       zerolog.Logger

	mu        sync.Mutex
	writtenAt map[string]time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewLocal(ctx context.Context, cfg Config, log zerolog.Logger) (*Local, error) {
	var opts localOptions
	if cfg.Options != "" {
		if err := json.Unmarshal([]byte(cfg.Options), &opts); err != nil {
			return nil, fmt.Errorf("parse store options: %w", err)
		}
	}
	codec, err := storeCodec(opts.Codec)
	if err != nil {
		return nil, err
	}

	var kv gokv.Store
	switch cfg.Backend {
	case "syncmap":
		o := syncmap.DefaultOptions
		if codec != nil {
			o.Codec = codec
		}
		kv = syncmap.NewStore(o)
	case "file":
		o := file.DefaultOptions
		if opts.Dir != "" {
			o.Directory = opts.Dir
		}
		if opts.FilenameExtension != "" {
			o.FilenameExtension = &opts.FilenameExtension
		}
		if codec != nil {
			o.Codec = codec
		}
		kv, err = file.NewStore(o)
		if err != nil {
			return nil, fmt.Errorf("file.NewStore: %w", err)
		}
	case "badgerdb":
		o := badgerdb.DefaultOptions
		if opts.Dir != "" {
			o.Dir = opts.Dir
		}
		if codec != nil {
			o.Codec = codec
		}
		kv, err = badgerdb.NewStore(o)
		if err != nil {
			return nil, fmt.Errorf("badgerdb.NewStore: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported local store backend %q", cfg.Backend)
	}

	janitorCtx, cancel := context.WithCancel(ctx)
	s := &Local{
		kv:        kv,
		retention: cfg.Retention,
		log:       log.With().Str("component", "result-store").Logger(),
		writtenAt: make(map[string]time.Time),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	s.log.Info().
		Str("backend", cfg.Backend).
		Dur("retention", cfg.Retention).
		Msg("result store initialized")

	go s.janitor(janitorCtx)

	return s, nil
}

func storeCodec(name string) (encoding.Codec, error) {
	switch name {
	case "":
		// gokv picks its default codec.
		return nil, nil
	case "json":
		return encoding.JSON, nil
	case "gob":
		return encoding.Gob, nil
	default:
		return nil, fmt.Errorf("unsupported codec %q", name)
	}
}

func (s *Local) Set(_ context.Context, rec *proofjob.Record) error {
	if rec.JobID == "" {
		return fmt.Errorf("record job id is required")
	}
	if err := s.kv.Set(rec.JobID, rec); err != nil {
		return fmt.Errorf("set record: %w", err)
	}
	s.mu.Lock()
	s.writtenAt[rec.JobID] = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *Local) Get(_ context.Context, jobID string) (*proofjob.Record, bool, error) {
	var rec proofjob.Record
	found, err := s.kv.Get(jobID, &rec)
	if err != nil {
		return nil, false, fmt.Errorf("get record: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (s *Local) Delete(_ context.Context, jobID string) error {
	if err := s.kv.Delete(jobID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	s.mu.Lock()
	delete(s.writtenAt, jobID)
	s.mu.Unlock()
	return nil
}

func (s *Local) Close() error {
	s.cancel()
	<-s.done
	return s.kv.Close()
}

// janitor periodically drops records older than the retention window.
func (s *Local) janitor(ctx context.Context) {
	defer close(s.done)

	interval := s.retention / 10
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Local) sweep() {
	cutoff := time.Now().Add(-s.retention)

	s.mu.Lock()
	var expired []string
	for id, at := range s.writtenAt {
		if at.Before(cutoff) {
			expired = append(expired, id)
			delete(s.writtenAt, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		if err := s.kv.Delete(id); err != nil {
			s.log.Warn().Err(err).Str("job_id", id).Msg("failed to expire record")
		}
	}
	if len(expired) > 0 {
		s.log.Debug().Int("expired", len(expired)).Msg("expired job records")
	}
}
