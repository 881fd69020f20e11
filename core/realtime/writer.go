package realtime

import "context"

// Writer is the write half of the store boundary. RedisStore satisfies it
// directly; LocalWriter adapts the in-process Hub.
type Writer interface {
	Set(ctx context.Context, path string, fields map[string]interface{}) error
	Delete(ctx context.Context, path string) error
}

// LocalWriter adapts a Hub to Writer for single-process deployments.
type LocalWriter struct {
	Hub *Hub
}

func (w LocalWriter) Set(_ context.Context, path string, fields map[string]interface{}) error {
	return w.Hub.Set(path, fields)
}

func (w LocalWriter) Delete(_ context.Context, path string) error {
	return w.Hub.Delete(path)
}
