package transport

import (
	"context"
	"path"
	"sort"
	"sync"
)

// MemoryClient is an in-process transfer host for tests and the local
// sandbox. It records how often each operation was called.
type MemoryClient struct {
	mu       sync.Mutex
	files    map[string][]byte
	calls    map[string]int
	failures map[string]error
	torn     *tornUpload
}

// tornUpload is a one-shot fault: the next upload stores only the first keep
// bytes under the final name and then fails with err.
type tornUpload struct {
	keep int
	err  error
}

// NewMemoryClient creates an empty in-memory host.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		files:    make(map[string][]byte),
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

func (c *MemoryClient) begin(ctx context.Context, op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[op]++
	if err := ctx.Err(); err != nil {
		return NewError(CategoryTimeout, op, "", err)
	}
	return c.failures[op]
}

func (c *MemoryClient) Upload(ctx context.Context, dir, name string, data []byte) error {
	if err := c.begin(ctx, OpUpload); err != nil {
		return err
	}
	p := joinPath(dir, name)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.files[p]; exists {
		return NewError(CategoryAlreadyExists, OpUpload, p, nil)
	}
	if t := c.torn; t != nil {
		c.torn = nil
		c.files[p] = append([]byte(nil), data[:min(t.keep, len(data))]...)
		return t.err
	}
	c.files[p] = append([]byte(nil), data...)
	return nil
}

func (c *MemoryClient) Download(ctx context.Context, dir, name string) ([]byte, error) {
	if err := c.begin(ctx, OpDownload); err != nil {
		return nil, err
	}
	p := joinPath(dir, name)

	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.files[p]
	if !ok {
		return nil, NewError(CategoryNotFound, OpDownload, p, nil)
	}
	return append([]byte(nil), data...), nil
}

func (c *MemoryClient) List(ctx context.Context, dir string) ([]string, error) {
	if err := c.begin(ctx, OpList); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var names []string
	for p := range c.files {
		if path.Dir(p) == path.Clean(dir) {
			names = append(names, path.Base(p))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Put places a file on the host without counting a call. Tests use it to
// stand in for the regulator writing acknowledgements.
func (c *MemoryClient) Put(dir, name string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[joinPath(dir, name)] = append([]byte(nil), data...)
}

// File returns the stored bytes of dir/name.
func (c *MemoryClient) File(dir, name string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.files[joinPath(dir, name)]
	return data, ok
}

// Calls returns how many times op was invoked, including failed calls.
func (c *MemoryClient) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// SetFailure makes every op call fail with err until cleared with nil.
func (c *MemoryClient) SetFailure(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, op)
		return
	}
	c.failures[op] = err
}

// TearNextUpload makes the next Upload leave only the first keep bytes under
// the target name and return err, the way a host without atomic rename looks
// after a connection drops mid-transfer.
func (c *MemoryClient) TearNextUpload(keep int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.torn = &tornUpload{keep: keep, err: err}
}
