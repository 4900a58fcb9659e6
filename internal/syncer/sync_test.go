package syncer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"codeverse/internal/entity"
	"codeverse/internal/quota"
)

type fakeLocal struct {
	records    map[string]*entity.DbPoemRecord
	tombstones map[string]entity.DbTombstone
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{
		records:    make(map[string]*entity.DbPoemRecord),
		tombstones: make(map[string]entity.DbTombstone),
	}
}

func (l *fakeLocal) ListPoemRecordsByUser(ctx context.Context, userID uint) ([]entity.DbPoemRecord, error) {
	var out []entity.DbPoemRecord
	for _, r := range l.records {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (l *fakeLocal) UpsertPoemRecord(ctx context.Context, record *entity.DbPoemRecord) error {
	copied := *record
	l.records[record.ID] = &copied
	return nil
}

func (l *fakeLocal) PurgePoemRecord(ctx context.Context, id string) error {
	delete(l.records, id)
	return nil
}

func (l *fakeLocal) SetPoemFavorite(ctx context.Context, id string, favorite bool, at time.Time) error {
	if r, ok := l.records[id]; ok {
		r.Favorite = favorite
		r.FavoriteUpdatedAt = at
	}
	return nil
}

func (l *fakeLocal) ListTombstonesByUser(ctx context.Context, userID uint) ([]entity.DbTombstone, error) {
	var out []entity.DbTombstone
	for _, t := range l.tombstones {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (l *fakeLocal) DeleteTombstone(ctx context.Context, recordID string) error {
	delete(l.tombstones, recordID)
	return nil
}

type fakeRemote struct {
	objects map[string][]byte
	puts    int
	deletes int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{objects: make(map[string][]byte)}
}

func (r *fakeRemote) PutObject(ctx context.Context, key string, data []byte) error {
	r.puts++
	r.objects[key] = data
	return nil
}

func (r *fakeRemote) GetObject(ctx context.Context, key string) ([]byte, error) {
	data, ok := r.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return data, nil
}

func (r *fakeRemote) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for key := range r.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (r *fakeRemote) DeleteObject(ctx context.Context, key string) error {
	r.deletes++
	delete(r.objects, key)
	return nil
}

func (r *fakeRemote) ProbeAddr() string { return "fake:443" }

func (r *fakeRemote) putRecord(t *testing.T, userID uint, doc entity.PoemDocument) {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal doc: %v", err)
	}
	r.objects[recordKey(userID, doc.ID)] = data
}

type fakeProbe struct{ reachable bool }

func (p fakeProbe) Reachable(ctx context.Context) bool { return p.reachable }

func freeUser() *entity.DbUser {
	return &entity.DbUser{ID: 7, Tier: quota.TierFree, IsActive: true}
}

func TestReconcileSkipsGuest(t *testing.T) {
	local := newFakeLocal()
	remote := newFakeRemote()
	c := NewCoordinator(local, remote, fakeProbe{reachable: true})

	report, err := c.Reconcile(context.Background(), &entity.DbUser{ID: 1, Tier: quota.TierGuest})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Skipped || report.SkipReason == "" {
		t.Errorf("expected skipped report, got %+v", report)
	}
	if remote.puts != 0 || remote.deletes != 0 {
		t.Errorf("guest sync must not touch the remote store")
	}
}

func TestReconcileSkipsDisabledUser(t *testing.T) {
	local := newFakeLocal()
	remote := newFakeRemote()
	c := NewCoordinator(local, remote, fakeProbe{reachable: true})

	report, err := c.Reconcile(context.Background(), &entity.DbUser{ID: 2, Tier: quota.TierFree})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Skipped {
		t.Errorf("expected skipped report for disabled account, got %+v", report)
	}
	if remote.puts != 0 || remote.deletes != 0 {
		t.Errorf("disabled account sync must not touch the remote store")
	}
}

func TestReconcileSkipsWhenUnreachable(t *testing.T) {
	local := newFakeLocal()
	local.records["r1"] = &entity.DbPoemRecord{ID: "r1", UserID: 7}
	remote := newFakeRemote()
	c := NewCoordinator(local, remote, fakeProbe{reachable: false})

	report, err := c.Reconcile(context.Background(), freeUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Skipped {
		t.Errorf("expected skipped report, got %+v", report)
	}
	// 跳过时两边都不许有任何改动
	if report.Pulled+report.Pushed+report.FavoritesMerged+report.TombstonesPushed+report.TombstonesApplied != 0 {
		t.Errorf("skipped report must carry zero counts: %+v", report)
	}
	if remote.puts != 0 {
		t.Errorf("unreachable sync must not write remotely")
	}
}

func TestReconcileSkipsWhenNotConfigured(t *testing.T) {
	c := NewCoordinator(newFakeLocal(), nil, nil)

	report, err := c.Reconcile(context.Background(), freeUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Skipped {
		t.Errorf("expected skipped report, got %+v", report)
	}
}

func TestReconcilePullsMissingRecords(t *testing.T) {
	local := newFakeLocal()
	remote := newFakeRemote()
	remote.putRecord(t, 7, entity.PoemDocument{
		ID:       "r1",
		Code:     "print('hi')",
		Language: "python",
		Style:    "haiku",
		Poem:     "three lines",
	})
	c := NewCoordinator(local, remote, fakeProbe{reachable: true})

	report, err := c.Reconcile(context.Background(), freeUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Pulled != 1 {
		t.Errorf("expected 1 pulled, got %+v", report)
	}

	got, ok := local.records["r1"]
	if !ok {
		t.Fatal("record was not pulled into local store")
	}
	if got.UserID != 7 || got.PoemText != "three lines" {
		t.Errorf("pulled record mismatch: %+v", got)
	}
}

func TestReconcilePushesMissingRecords(t *testing.T) {
	local := newFakeLocal()
	local.records["r2"] = &entity.DbPoemRecord{ID: "r2", UserID: 7, Code: "x", PoemText: "a poem"}
	remote := newFakeRemote()
	c := NewCoordinator(local, remote, fakeProbe{reachable: true})

	report, err := c.Reconcile(context.Background(), freeUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Pushed != 1 {
		t.Errorf("expected 1 pushed, got %+v", report)
	}

	data, ok := remote.objects[recordKey(7, "r2")]
	if !ok {
		t.Fatal("record was not pushed to remote store")
	}
	var doc entity.PoemDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal pushed doc: %v", err)
	}
	if doc.Poem != "a poem" {
		t.Errorf("pushed doc mismatch: %+v", doc)
	}
}

func TestReconcileTombstones(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	local := newFakeLocal()
	// 本地删过 r1，墓碑待推送
	local.tombstones["r1"] = entity.DbTombstone{RecordID: "r1", UserID: 7, DeletedAt: now}
	// r3 还在本地，但远端已有墓碑
	local.records["r3"] = &entity.DbPoemRecord{ID: "r3", UserID: 7}

	remote := newFakeRemote()
	remote.putRecord(t, 7, entity.PoemDocument{ID: "r1", Poem: "stale"})
	tombData, _ := json.Marshal(tombstoneDoc{RecordID: "r3", DeletedAt: now})
	remote.objects[tombstoneKey(7, "r3")] = tombData
	remote.putRecord(t, 7, entity.PoemDocument{ID: "r3", Poem: "deleted elsewhere"})

	c := NewCoordinator(local, remote, fakeProbe{reachable: true})
	report, err := c.Reconcile(context.Background(), freeUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.TombstonesPushed != 1 {
		t.Errorf("expected 1 tombstone pushed, got %+v", report)
	}
	if report.TombstonesApplied != 1 {
		t.Errorf("expected 1 tombstone applied, got %+v", report)
	}

	if _, exists := remote.objects[recordKey(7, "r1")]; exists {
		t.Error("remote record should be deleted after tombstone push")
	}
	if _, exists := remote.objects[tombstoneKey(7, "r1")]; !exists {
		t.Error("tombstone should remain remotely to block resurrection")
	}
	if _, exists := local.tombstones["r1"]; exists {
		t.Error("local tombstone row should be cleared after push")
	}
	if _, exists := local.records["r3"]; exists {
		t.Error("local record should be purged by remote tombstone")
	}
	// 有墓碑的记录不许再被拉回来
	if report.Pulled != 0 {
		t.Errorf("dead records must not be pulled: %+v", report)
	}
}

func TestReconcileFavoriteMerge(t *testing.T) {
	older := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		localFav      bool
		localAt       time.Time
		remoteFav     bool
		remoteAt      time.Time
		wantMerged    int
		wantLocalFav  bool
		wantRemoteFav bool
	}{
		{
			name:          "远端较新本地跟随",
			localFav:      false,
			localAt:       older,
			remoteFav:     true,
			remoteAt:      newer,
			wantMerged:    1,
			wantLocalFav:  true,
			wantRemoteFav: true,
		},
		{
			name:          "本地较新覆盖远端",
			localFav:      true,
			localAt:       newer,
			remoteFav:     false,
			remoteAt:      older,
			wantMerged:    1,
			wantLocalFav:  true,
			wantRemoteFav: true,
		},
		{
			name:          "时间相同不动",
			localFav:      true,
			localAt:       newer,
			remoteFav:     false,
			remoteAt:      newer,
			wantMerged:    0,
			wantLocalFav:  true,
			wantRemoteFav: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := newFakeLocal()
			local.records["r1"] = &entity.DbPoemRecord{
				ID: "r1", UserID: 7,
				Favorite: tt.localFav, FavoriteUpdatedAt: tt.localAt,
			}
			remote := newFakeRemote()
			remote.putRecord(t, 7, entity.PoemDocument{
				ID:       "r1",
				Favorite: tt.remoteFav, FavoriteUpdatedAt: tt.remoteAt,
			})

			c := NewCoordinator(local, remote, fakeProbe{reachable: true})
			report, err := c.Reconcile(context.Background(), freeUser())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if report.FavoritesMerged != tt.wantMerged {
				t.Errorf("expected %d merged, got %+v", tt.wantMerged, report)
			}
			if got := local.records["r1"].Favorite; got != tt.wantLocalFav {
				t.Errorf("expected local favorite %v, got %v", tt.wantLocalFav, got)
			}

			var doc entity.PoemDocument
			if err := json.Unmarshal(remote.objects[recordKey(7, "r1")], &doc); err != nil {
				t.Fatalf("unmarshal remote doc: %v", err)
			}
			if doc.Favorite != tt.wantRemoteFav {
				t.Errorf("expected remote favorite %v, got %v", tt.wantRemoteFav, doc.Favorite)
			}
		})
	}
}
