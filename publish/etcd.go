package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/zero-day-ai/mxgraph/catalog"
	"github.com/zero-day-ai/mxgraph/config"
)

// Announcement is what an EtcdAnnouncer stores for its process.
type Announcement struct {
	InstanceID string    `json:"instance_id"`
	Endpoint   string    `json:"endpoint,omitempty"`
	Namespace  string    `json:"namespace"`
	Revision   uint64    `json:"revision"`
	Digest     string    `json:"digest"`
	Types      int       `json:"types"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EtcdOptions configures an EtcdAnnouncer.
type EtcdOptions struct {
	Endpoints []string
	// Namespace is the root key segment. Default: "mxgraph"
	Namespace string
	// TTL is the lease in seconds. Default: 30
	TTL int
	TLS *config.TLSConfig

	// InstanceID identifies this process. A random UUID when empty.
	InstanceID string
	// Endpoint is the address hosts can fetch the catalog from, if any.
	Endpoint string
}

// EtcdAnnouncer advertises the catalog revision this process serves under
// /<namespace>/catalog/<instance-id>. The key is bound to a lease renewed
// every TTL/3, so it disappears when the process stops.
//
// All methods are safe for concurrent use.
type EtcdAnnouncer struct {
	client     *clientv3.Client
	namespace  string
	ttl        int
	instanceID string
	endpoint   string

	mu         sync.Mutex
	lease      clientv3.LeaseID
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
	closedChan chan struct{}
}

// NewEtcdAnnouncer connects to etcd and verifies connectivity.
func NewEtcdAnnouncer(opts EtcdOptions) (*EtcdAnnouncer, error) {
	if len(opts.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd endpoints cannot be empty")
	}
	if opts.Namespace == "" {
		opts.Namespace = "mxgraph"
	}
	if opts.TTL <= 0 {
		opts.TTL = 30
	}
	if opts.InstanceID == "" {
		opts.InstanceID = uuid.NewString()
	}

	clientCfg := clientv3.Config{
		Endpoints:   opts.Endpoints,
		DialTimeout: 5 * time.Second,
	}
	tlsCfg, err := ClientTLS(opts.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to configure TLS: %w", err)
	}
	clientCfg.TLS = tlsCfg

	cli, err := clientv3.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := cli.Get(ctx, "health-check"); err != nil && err != context.DeadlineExceeded {
		cli.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	return newEtcdAnnouncer(cli, opts), nil
}

func newEtcdAnnouncer(cli *clientv3.Client, opts EtcdOptions) *EtcdAnnouncer {
	return &EtcdAnnouncer{
		client:     cli,
		namespace:  opts.Namespace,
		ttl:        opts.TTL,
		instanceID: opts.InstanceID,
		endpoint:   opts.Endpoint,
		closedChan: make(chan struct{}),
	}
}

// Name implements Publisher.
func (a *EtcdAnnouncer) Name() string { return "etcd" }

// InstanceID returns the id this process announces under.
func (a *EtcdAnnouncer) InstanceID() string { return a.instanceID }

// Publish writes the announcement for snap. The first call grants the lease
// and starts the keepalive; later calls reuse it.
func (a *EtcdAnnouncer) Publish(ctx context.Context, snap *catalog.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("etcd announcer is closed")
	}

	data, err := json.Marshal(a.announcement(snap))
	if err != nil {
		return fmt.Errorf("failed to marshal announcement: %w", err)
	}

	if a.lease == clientv3.NoLease {
		resp, err := a.client.Grant(ctx, int64(a.ttl))
		if err != nil {
			return fmt.Errorf("failed to create lease: %w", err)
		}
		a.lease = resp.ID

		if a.cancel != nil {
			a.cancel()
		}
		keepaliveCtx, cancel := context.WithCancel(context.Background())
		a.cancel = cancel
		a.wg.Add(1)
		go a.keepalive(keepaliveCtx, resp.ID)
	}

	if _, err := a.client.Put(ctx, a.key(a.instanceID), string(data), clientv3.WithLease(a.lease)); err != nil {
		return fmt.Errorf("failed to announce catalog revision %d: %w", snap.Revision, err)
	}
	return nil
}

func (a *EtcdAnnouncer) announcement(snap *catalog.Snapshot) Announcement {
	return Announcement{
		InstanceID: a.instanceID,
		Endpoint:   a.endpoint,
		Namespace:  snap.Namespace,
		Revision:   snap.Revision,
		Digest:     snap.Digest,
		Types:      len(snap.Types),
		UpdatedAt:  snap.CreatedAt,
	}
}

// Discover returns the announcements of every live process.
func (a *EtcdAnnouncer) Discover(ctx context.Context) ([]Announcement, error) {
	resp, err := a.client.Get(ctx, a.prefix(), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover catalogs: %w", err)
	}

	out := make([]Announcement, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var ann Announcement
		if err := json.Unmarshal(kv.Value, &ann); err != nil {
			continue
		}
		out = append(out, ann)
	}
	return out, nil
}

// Watch sends the current announcements, then the full list again after
// every change, until ctx is canceled or the announcer is closed.
func (a *EtcdAnnouncer) Watch(ctx context.Context) (<-chan []Announcement, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, fmt.Errorf("etcd announcer is closed")
	}
	a.wg.Add(1)
	a.mu.Unlock()

	initial, err := a.Discover(ctx)
	if err != nil {
		a.wg.Done()
		return nil, err
	}

	ch := make(chan []Announcement, 1)
	ch <- initial
	watchChan := a.client.Watch(ctx, a.prefix(), clientv3.WithPrefix())

	go func() {
		defer a.wg.Done()
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case <-a.closedChan:
				return
			case resp, ok := <-watchChan:
				if !ok || resp.Err() != nil {
					return
				}
				anns, err := a.Discover(ctx)
				if err != nil {
					continue
				}
				select {
				case ch <- anns:
				case <-ctx.Done():
					return
				case <-a.closedChan:
					return
				}
			}
		}
	}()
	return ch, nil
}

// Close revokes the lease, which removes the announcement, and releases
// the etcd client.
func (a *EtcdAnnouncer) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	if a.cancel != nil {
		a.cancel()
	}
	lease := a.lease
	close(a.closedChan)
	a.mu.Unlock()

	a.wg.Wait()

	if lease != clientv3.NoLease {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, _ = a.client.Revoke(ctx, lease)
	}
	return a.client.Close()
}

func (a *EtcdAnnouncer) keepalive(ctx context.Context, lease clientv3.LeaseID) {
	defer a.wg.Done()

	ticker := time.NewTicker(time.Duration(a.ttl) * time.Second / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.closedChan:
			return
		case <-ticker.C:
			if _, err := a.client.KeepAliveOnce(ctx, lease); err != nil {
				// the next Publish grants a fresh lease
				a.mu.Lock()
				if a.lease == lease {
					a.lease = clientv3.NoLease
				}
				a.mu.Unlock()
				return
			}
		}
	}
}

func (a *EtcdAnnouncer) prefix() string {
	return fmt.Sprintf("/%s/catalog/", a.namespace)
}

func (a *EtcdAnnouncer) key(instanceID string) string {
	return a.prefix() + instanceID
}
