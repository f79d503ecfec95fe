//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/vector-agent-go/log"
)

// Branch is one worker of a fan-out node.
type Branch struct {
	ID       string
	Function NodeFunc
	// Owns lists the fields the branch writes. Branches of one fan-out
	// must own disjoint fields.
	Owns []string
}

// FanOutOption configures FanOut.
type FanOutOption func(*fanOutOptions)

type fanOutOptions struct {
	pool *ants.Pool
}

// WithPool runs branches on a shared pool instead of a pool per call.
func WithPool(pool *ants.Pool) FanOutOption {
	return func(o *fanOutOptions) {
		o.pool = pool
	}
}

// FanOut returns a node function running every branch concurrently on the
// same snapshot. The node returns only once all branches have returned,
// so the node after it observes every branch's fields at once. The first
// failing branch cancels the others; errors are reported in branch order.
// The returned field list is the union of the branches' ownership and is
// meant for WithOwnedFields.
func FanOut(branches []Branch, opts ...FanOutOption) (NodeFunc, []string, error) {
	if len(branches) == 0 {
		return nil, nil, errors.New("fan-out needs at least one branch")
	}
	var options fanOutOptions
	for _, opt := range opts {
		opt(&options)
	}
	ids := make(map[string]bool, len(branches))
	owner := make(map[string]string)
	var owned []string
	for _, b := range branches {
		if b.ID == "" || b.Function == nil {
			return nil, nil, fmt.Errorf("branch %q needs an id and a function", b.ID)
		}
		if ids[b.ID] {
			return nil, nil, &DuplicateNodeError{NodeID: b.ID}
		}
		ids[b.ID] = true
		if len(b.Owns) == 0 {
			return nil, nil, fmt.Errorf("branch %q must declare the fields it owns", b.ID)
		}
		for _, f := range b.Owns {
			if other, taken := owner[f]; taken {
				return nil, nil, fmt.Errorf("field %q is owned by both %q and %q", f, other, b.ID)
			}
			owner[f] = b.ID
			owned = append(owned, f)
		}
	}

	fn := func(ctx context.Context, state State) (State, error) {
		pool := options.pool
		if pool == nil {
			p, err := ants.NewPool(len(branches))
			if err != nil {
				return nil, fmt.Errorf("failed to create branch worker pool: %w", err)
			}
			defer p.Release()
			pool = p
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		updates := make([]State, len(branches))
		errs := make([]error, len(branches))
		var wg sync.WaitGroup
		for i, b := range branches {
			wg.Add(1)
			idx, branch := i, b
			err := pool.Submit(func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						errs[idx] = &NodeError{NodeID: branch.ID, Cause: fmt.Errorf("panic: %v", r)}
						cancel()
					}
				}()
				update, err := branch.Function(ctx, state.Clone())
				if err != nil {
					errs[idx] = &NodeError{NodeID: branch.ID, Cause: err}
					cancel()
					return
				}
				updates[idx] = update
			})
			if err != nil {
				wg.Done()
				errs[idx] = fmt.Errorf("submit branch %s: %w", branch.ID, err)
				cancel()
			}
		}
		wg.Wait()

		if err := errors.Join(errs...); err != nil {
			log.Warnf("fan-out failed: %v", err)
			return nil, err
		}
		merged := make(State)
		for i, b := range branches {
			for k, v := range updates[i] {
				if owner[k] != b.ID {
					return nil, &ValidationError{Field: k, Node: b.ID, Reason: "field not owned by node"}
				}
				merged[k] = v
			}
		}
		return merged, nil
	}
	return fn, owned, nil
}
