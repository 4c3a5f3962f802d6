// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package post

import (
	"context"
	"errors"
	"sync"

	"github.com/olegiv/agentblog/internal/model"
)

// ErrIndexClosed is returned by SerialIndex after Close.
var ErrIndexClosed = errors.New("index writer closed")

// indexJob is one mutation waiting for the writer goroutine.
type indexJob struct {
	ctx    context.Context
	run    func(ctx context.Context) error
	result chan error
}

// SerialIndex funnels every index mutation through a single writer goroutine,
// so mutations issued by this process never overwrite each other. Writers in
// other processes can still race; run one process per store or rely on Rebuild.
type SerialIndex struct {
	inner *Index
	jobs  chan indexJob
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewSerialIndex starts the writer goroutine around inner.
func NewSerialIndex(inner *Index, queueSize int) *SerialIndex {
	if queueSize <= 0 {
		queueSize = 64
	}
	s := &SerialIndex{
		inner: inner,
		jobs:  make(chan indexJob, queueSize),
		done:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *SerialIndex) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case job := <-s.jobs:
			job.result <- job.run(job.ctx)
		}
	}
}

// do hands run to the writer and waits for its result.
func (s *SerialIndex) do(ctx context.Context, run func(ctx context.Context) error) error {
	job := indexJob{ctx: ctx, run: run, result: make(chan error, 1)}

	select {
	case <-s.done:
		return ErrIndexClosed
	default:
	}

	select {
	case s.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrIndexClosed
	}

	select {
	case err := <-job.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrIndexClosed
	}
}

// Apply implements Indexer.
func (s *SerialIndex) Apply(ctx context.Context, p *model.Post, action Action) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.inner.Apply(ctx, p, action)
	})
}

// Get implements Indexer. Reads bypass the writer.
func (s *SerialIndex) Get(ctx context.Context) (*model.Index, error) {
	return s.inner.Get(ctx)
}

// Rebuild implements Indexer.
func (s *SerialIndex) Rebuild(ctx context.Context) (*model.Index, error) {
	var idx *model.Index
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		idx, err = s.inner.Rebuild(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Close stops the writer after the job in flight, if any.
func (s *SerialIndex) Close() {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}

var _ Indexer = (*SerialIndex)(nil)
