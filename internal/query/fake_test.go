package query

import (
	"context"
	"fmt"
	"time"
)

type fakeClient struct {
	states    []ExecutionState
	reason    string
	polls     int
	submitted []SubmitRequest
	results   map[Handle]ResultSet
	fetched   []Handle
	pollErr   error
}

func (f *fakeClient) Submit(_ context.Context, request SubmitRequest) (Handle, error) {
	f.submitted = append(f.submitted, request)
	return Handle(fmt.Sprintf("exec-%d", len(f.submitted))), nil
}

func (f *fakeClient) PollStatus(_ context.Context, _ Handle) (Status, error) {
	if f.pollErr != nil {
		return Status{}, f.pollErr
	}
	f.polls++
	if len(f.states) == 0 {
		return Status{State: StateSucceeded}, nil
	}
	state := f.states[0]
	if len(f.states) > 1 {
		f.states = f.states[1:]
	}
	return Status{State: state, Reason: f.reason}, nil
}

func (f *fakeClient) FetchResults(_ context.Context, handle Handle) (ResultSet, error) {
	f.fetched = append(f.fetched, handle)
	return f.results[handle], nil
}

func noSleep(context.Context, time.Duration) error { return nil }
