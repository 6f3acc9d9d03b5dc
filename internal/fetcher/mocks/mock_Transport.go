// Package mocks provides test doubles for the fetcher package.
package mocks

import (
	"context"
	"net/url"

	fetcher "github.com/sells-group/edge-cli/internal/fetcher"
	mock "github.com/stretchr/testify/mock"
)

// MockTransport is a mock type for the Transport interface.
type MockTransport struct {
	mock.Mock
}

// Get provides a mock function with given fields: ctx, rawURL, query
func (_m *MockTransport) Get(ctx context.Context, rawURL string, query url.Values) (*fetcher.Response, error) {
	ret := _m.Called(ctx, rawURL, query)

	if len(ret) == 0 {
		panic("no return value specified for Get")
	}

	var r0 *fetcher.Response
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, url.Values) (*fetcher.Response, error)); ok {
		return rf(ctx, rawURL, query)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, url.Values) *fetcher.Response); ok {
		r0 = rf(ctx, rawURL, query)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*fetcher.Response)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, url.Values) error); ok {
		r1 = rf(ctx, rawURL, query)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// PostForm provides a mock function with given fields: ctx, rawURL, form
func (_m *MockTransport) PostForm(ctx context.Context, rawURL string, form url.Values) (*fetcher.Response, error) {
	ret := _m.Called(ctx, rawURL, form)

	if len(ret) == 0 {
		panic("no return value specified for PostForm")
	}

	var r0 *fetcher.Response
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, url.Values) (*fetcher.Response, error)); ok {
		return rf(ctx, rawURL, form)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, url.Values) *fetcher.Response); ok {
		r0 = rf(ctx, rawURL, form)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*fetcher.Response)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, url.Values) error); ok {
		r1 = rf(ctx, rawURL, form)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockTransport creates a new instance of MockTransport. It also registers
// a testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockTransport(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockTransport {
	m := &MockTransport{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
