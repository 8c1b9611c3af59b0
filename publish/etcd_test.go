package publish

import (
	"context"
	"net"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pb "go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/mvccpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// memEtcd is an in-memory etcd server covering the KV, lease and watch
// calls EtcdAnnouncer makes.
type memEtcd struct {
	pb.UnimplementedKVServer
	pb.UnimplementedLeaseServer
	pb.UnimplementedWatchServer

	endpoints []string

	mu         sync.Mutex
	rev        int64
	kvs        map[string]*mvccpb.KeyValue
	leases     map[int64]int64
	lastLease  int64
	keepalives int
	watchers   map[*memWatcher]struct{}
	lastWatch  int64
}

type memWatcher struct {
	id       int64
	key, end string
	send     func(*pb.WatchResponse) error
}

func startMemEtcd(t *testing.T) *memEtcd {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	m := &memEtcd{
		endpoints: []string{lis.Addr().String()},
		kvs:       make(map[string]*mvccpb.KeyValue),
		leases:    make(map[int64]int64),
		watchers:  make(map[*memWatcher]struct{}),
	}
	srv := grpc.NewServer()
	pb.RegisterKVServer(srv, m)
	pb.RegisterLeaseServer(srv, m)
	pb.RegisterWatchServer(srv, m)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return m
}

func (m *memEtcd) header() *pb.ResponseHeader {
	return &pb.ResponseHeader{ClusterId: 1, MemberId: 1, Revision: m.rev, RaftTerm: 1}
}

func inRange(key, start, end string) bool {
	switch end {
	case "":
		return key == start
	case "\x00":
		return key >= start
	}
	return key >= start && key < end
}

func (m *memEtcd) Range(_ context.Context, req *pb.RangeRequest) (*pb.RangeResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.kvs {
		if inRange(k, string(req.Key), string(req.RangeEnd)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	resp := &pb.RangeResponse{Header: m.header(), Count: int64(len(keys))}
	for _, k := range keys {
		resp.Kvs = append(resp.Kvs, m.kvs[k])
	}
	return resp, nil
}

func (m *memEtcd) Put(_ context.Context, req *pb.PutRequest) (*pb.PutResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.leases[req.Lease]; req.Lease != 0 && !ok {
		return nil, status.Error(codes.NotFound, "etcdserver: requested lease not found")
	}

	m.rev++
	kv := &mvccpb.KeyValue{
		Key:            req.Key,
		Value:          req.Value,
		Lease:          req.Lease,
		CreateRevision: m.rev,
		ModRevision:    m.rev,
		Version:        1,
	}
	if prev, ok := m.kvs[string(req.Key)]; ok {
		kv.CreateRevision = prev.CreateRevision
		kv.Version = prev.Version + 1
	}
	m.kvs[string(req.Key)] = kv
	m.notify(&mvccpb.Event{Type: mvccpb.PUT, Kv: kv})
	return &pb.PutResponse{Header: m.header()}, nil
}

func (m *memEtcd) DeleteRange(_ context.Context, req *pb.DeleteRangeRequest) (*pb.DeleteRangeResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.deleteWhere(func(kv *mvccpb.KeyValue) bool {
		return inRange(string(kv.Key), string(req.Key), string(req.RangeEnd))
	})
	return &pb.DeleteRangeResponse{Header: m.header(), Deleted: n}, nil
}

func (m *memEtcd) deleteWhere(match func(*mvccpb.KeyValue) bool) int64 {
	var n int64
	for k, kv := range m.kvs {
		if !match(kv) {
			continue
		}
		m.rev++
		delete(m.kvs, k)
		m.notify(&mvccpb.Event{Type: mvccpb.DELETE, Kv: &mvccpb.KeyValue{Key: kv.Key, ModRevision: m.rev}})
		n++
	}
	return n
}

func (m *memEtcd) LeaseGrant(_ context.Context, req *pb.LeaseGrantRequest) (*pb.LeaseGrantResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastLease++
	m.leases[m.lastLease] = req.TTL
	return &pb.LeaseGrantResponse{Header: m.header(), ID: m.lastLease, TTL: req.TTL}, nil
}

func (m *memEtcd) LeaseRevoke(_ context.Context, req *pb.LeaseRevokeRequest) (*pb.LeaseRevokeResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.leases[req.ID]; !ok {
		return nil, status.Error(codes.NotFound, "etcdserver: requested lease not found")
	}
	delete(m.leases, req.ID)
	m.deleteWhere(func(kv *mvccpb.KeyValue) bool { return kv.Lease == req.ID })
	return &pb.LeaseRevokeResponse{Header: m.header()}, nil
}

func (m *memEtcd) LeaseKeepAlive(stream pb.Lease_LeaseKeepAliveServer) error {
	for {
		req, err := stream.Recv()
		if err != nil {
			return nil
		}
		m.mu.Lock()
		ttl := m.leases[req.ID]
		m.keepalives++
		hdr := m.header()
		m.mu.Unlock()

		if err := stream.Send(&pb.LeaseKeepAliveResponse{Header: hdr, ID: req.ID, TTL: ttl}); err != nil {
			return err
		}
	}
}

func (m *memEtcd) Watch(stream pb.Watch_WatchServer) error {
	var sendMu sync.Mutex
	send := func(resp *pb.WatchResponse) error {
		sendMu.Lock()
		defer sendMu.Unlock()
		return stream.Send(resp)
	}

	var mine []*memWatcher
	defer func() {
		m.mu.Lock()
		for _, w := range mine {
			delete(m.watchers, w)
		}
		m.mu.Unlock()
	}()

	for {
		req, err := stream.Recv()
		if err != nil {
			return nil
		}

		switch r := req.RequestUnion.(type) {
		case *pb.WatchRequest_CreateRequest:
			m.mu.Lock()
			m.lastWatch++
			w := &memWatcher{
				id:   m.lastWatch,
				key:  string(r.CreateRequest.Key),
				end:  string(r.CreateRequest.RangeEnd),
				send: send,
			}
			m.watchers[w] = struct{}{}
			mine = append(mine, w)
			err := send(&pb.WatchResponse{Header: m.header(), WatchId: w.id, Created: true})
			m.mu.Unlock()
			if err != nil {
				return err
			}

		case *pb.WatchRequest_CancelRequest:
			m.mu.Lock()
			for w := range m.watchers {
				if w.id == r.CancelRequest.WatchId {
					delete(m.watchers, w)
				}
			}
			hdr := m.header()
			m.mu.Unlock()
			if err := send(&pb.WatchResponse{Header: hdr, WatchId: r.CancelRequest.WatchId, Canceled: true}); err != nil {
				return err
			}
		}
	}
}

// notify must be called with m.mu held.
func (m *memEtcd) notify(ev *mvccpb.Event) {
	for w := range m.watchers {
		if !inRange(string(ev.Kv.Key), w.key, w.end) {
			continue
		}
		_ = w.send(&pb.WatchResponse{Header: m.header(), WatchId: w.id, Events: []*mvccpb.Event{ev}})
	}
}

func (m *memEtcd) leaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leases)
}

func (m *memEtcd) keepaliveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keepalives
}

func newTestAnnouncer(t *testing.T, m *memEtcd, instanceID, endpoint string) *EtcdAnnouncer {
	t.Helper()
	a, err := NewEtcdAnnouncer(EtcdOptions{
		Endpoints:  m.endpoints,
		Namespace:  "studio",
		TTL:        3,
		InstanceID: instanceID,
		Endpoint:   endpoint,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func nextAnnouncements(t *testing.T, ch <-chan []Announcement) []Announcement {
	t.Helper()
	select {
	case anns, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return anns
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for announcements")
		return nil
	}
}

func TestEtcdAnnouncer_PublishDiscoverWatch(t *testing.T) {
	m := startMemEtcd(t)
	ctx := context.Background()

	a := newTestAnnouncer(t, m, "node-a", ":50051")
	b := newTestAnnouncer(t, m, "node-b", "")

	anns, err := b.Discover(ctx)
	require.NoError(t, err)
	assert.Empty(t, anns)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates, err := b.Watch(watchCtx)
	require.NoError(t, err)
	assert.Empty(t, nextAnnouncements(t, updates))

	snap := testSnapshot(t)
	require.NoError(t, a.Publish(ctx, snap))

	anns = nextAnnouncements(t, updates)
	require.Len(t, anns, 1)
	assert.Equal(t, "node-a", anns[0].InstanceID)
	assert.Equal(t, ":50051", anns[0].Endpoint)
	assert.Equal(t, snap.Namespace, anns[0].Namespace)
	assert.Equal(t, snap.Revision, anns[0].Revision)
	assert.Equal(t, snap.Digest, anns[0].Digest)
	assert.Equal(t, 3, anns[0].Types)

	next := *snap
	next.Revision++
	require.NoError(t, a.Publish(ctx, &next))

	anns = nextAnnouncements(t, updates)
	require.Len(t, anns, 1)
	assert.Equal(t, next.Revision, anns[0].Revision)
	assert.Equal(t, 1, m.leaseCount(), "later publishes reuse the lease")

	require.Eventually(t, func() bool { return m.keepaliveCount() > 0 },
		3*time.Second, 50*time.Millisecond, "lease is kept alive")

	cancel()
	require.NoError(t, b.Publish(ctx, snap))
	anns, err = a.Discover(ctx)
	require.NoError(t, err)
	assert.Len(t, anns, 2)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	anns, err = b.Discover(ctx)
	require.NoError(t, err)
	require.Len(t, anns, 1, "closing revokes the announcement")
	assert.Equal(t, "node-b", anns[0].InstanceID)
	assert.Equal(t, 1, m.leaseCount())

	assert.ErrorContains(t, a.Publish(ctx, snap), "closed")
	_, err = a.Watch(ctx)
	assert.ErrorContains(t, err, "closed")
}

func TestEtcdAnnouncer_WatchStopsOnClose(t *testing.T) {
	m := startMemEtcd(t)
	a := newTestAnnouncer(t, m, "node-a", "")

	updates, err := a.Watch(context.Background())
	require.NoError(t, err)
	nextAnnouncements(t, updates)

	require.NoError(t, a.Close())
	select {
	case _, ok := <-updates:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("watch channel not closed")
	}
}
